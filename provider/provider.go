// Package provider implements the forked-state read-through cache: a
// session backed by a remote fork consults a Provider on a local miss, then
// memoizes the result in-memory and in a pluggable persistent backend so a
// second session against the same (chain, block) never refetches.
package provider

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/sbip-sg/tevm/crypto"
	"github.com/sbip-sg/tevm/types"
)

// ErrProviderUnavailable wraps a remote RPC failure; ErrCacheError wraps a
// persistent-backend I/O failure. Neither corrupts already-committed state,
// per spec: a miss simply surfaces the error to the caller.
var (
	ErrProviderUnavailable = errors.New("provider: remote RPC unavailable")
	ErrCacheError          = errors.New("provider: cache backend error")
)

// BlockHeader is the subset of block metadata BLOCKHASH/TIMESTAMP/BASEFEE
// opcodes need, resolved for one pinned block number.
type BlockHeader struct {
	Hash      types.Word
	Timestamp uint64
	BaseFee   *uint256.Int
}

// Provider is the abstract remote-node client the cache consults on a miss.
// Its four getters and BlockHeader are the only RPC surface this executor
// depends on (eth_getCode, eth_getStorageAt, eth_getBalance,
// eth_getTransactionCount, eth_getBlockByNumber); the client itself — HTTP
// transport, retries, auth — is an external collaborator out of scope here.
type Provider interface {
	GetCode(addr types.Address, block uint64) ([]byte, error)
	GetStorageAt(addr types.Address, key types.Word, block uint64) (types.Word, error)
	GetBalance(addr types.Address, block uint64) (*uint256.Int, error)
	GetTransactionCount(addr types.Address, block uint64) (uint64, error)
	BlockHeader(block uint64) (BlockHeader, error)
}

// Backend is a persistent key-value store the Cache memoizes fetched values
// into: the filesystem backend (content-addressed directory) or an external
// key-value service, per spec §4.4. Implementations must make Put atomic
// per key.
type Backend interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key []byte, value []byte) error
}

// Cache is the read-through cache for one (chain, block) fork point: an
// in-memory map in front of an optional persistent Backend, in front of the
// Provider. Lookup order is memory -> backend -> RPC, and any value fetched
// from RPC is memoized at both of the faster layers before being returned.
type Cache struct {
	chainID  uint64
	block    uint64
	provider Provider
	backend  Backend

	accounts map[types.Address]types.Account
	code     map[types.Word][]byte
	storage  map[types.Address]map[types.Word]types.Word
}

// New returns a Cache pinned to (chainID, block), consulting provider on a
// miss and memoizing into backend (which may be nil for a memory-only
// cache).
func New(chainID, block uint64, provider Provider, backend Backend) *Cache {
	return &Cache{
		chainID:  chainID,
		block:    block,
		provider: provider,
		backend:  backend,
		accounts: make(map[types.Address]types.Account),
		code:     make(map[types.Word][]byte),
		storage:  make(map[types.Address]map[types.Word]types.Word),
	}
}

// GetAccount implements state.Reader.
func (c *Cache) GetAccount(addr types.Address) (types.Account, bool, error) {
	if acc, ok := c.accounts[addr]; ok {
		return acc, true, nil
	}

	key := accountKey(c.chainID, c.block, addr)
	if c.backend != nil {
		if raw, ok, err := c.backend.Get(key); err != nil {
			return types.Account{}, false, errors.Wrap(ErrCacheError, err.Error())
		} else if ok {
			acc := decodeAccount(raw)
			c.accounts[addr] = acc
			return acc, true, nil
		}
	}

	if c.provider == nil {
		return types.Account{}, false, nil
	}
	nonce, err := c.provider.GetTransactionCount(addr, c.block)
	if err != nil {
		return types.Account{}, false, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	balance, err := c.provider.GetBalance(addr, c.block)
	if err != nil {
		return types.Account{}, false, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	code, err := c.provider.GetCode(addr, c.block)
	if err != nil {
		return types.Account{}, false, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	acc := types.Account{Nonce: nonce, Balance: balance, CodeHash: types.EmptyCodeHash}
	if len(code) > 0 {
		acc.CodeHash = crypto.Keccak256Word(code)
		c.code[acc.CodeHash] = code
		if c.backend != nil {
			if err := c.backend.Put(codeKey(acc.CodeHash), code); err != nil {
				return types.Account{}, false, errors.Wrap(ErrCacheError, err.Error())
			}
		}
	}
	c.accounts[addr] = acc
	if c.backend != nil {
		if err := c.backend.Put(key, encodeAccount(acc)); err != nil {
			return types.Account{}, false, errors.Wrap(ErrCacheError, err.Error())
		}
	}
	return acc, true, nil
}

// GetCode implements state.Reader. codeHash is the hash already resolved
// from the account record, so a miss here only needs the code body itself.
func (c *Cache) GetCode(addr types.Address, codeHash types.Word) ([]byte, error) {
	if codeHash == types.EmptyCodeHash {
		return nil, nil
	}
	if code, ok := c.code[codeHash]; ok {
		return code, nil
	}

	key := codeKey(codeHash)
	if c.backend != nil {
		if raw, ok, err := c.backend.Get(key); err != nil {
			return nil, errors.Wrap(ErrCacheError, err.Error())
		} else if ok {
			c.code[codeHash] = raw
			return raw, nil
		}
	}

	if c.provider == nil {
		return nil, nil
	}
	code, err := c.provider.GetCode(addr, c.block)
	if err != nil {
		return nil, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	c.code[codeHash] = code
	if c.backend != nil {
		if err := c.backend.Put(key, code); err != nil {
			return nil, errors.Wrap(ErrCacheError, err.Error())
		}
	}
	return code, nil
}

// GetStorage implements state.Reader.
func (c *Cache) GetStorage(addr types.Address, slot types.Word) (types.Word, error) {
	if slots, ok := c.storage[addr]; ok {
		if v, ok := slots[slot]; ok {
			return v, nil
		}
	}

	key := storageKey(c.chainID, c.block, addr, slot)
	if c.backend != nil {
		if raw, ok, err := c.backend.Get(key); err != nil {
			return types.Word{}, errors.Wrap(ErrCacheError, err.Error())
		} else if ok {
			v := types.BytesToWord(raw)
			c.memoizeStorage(addr, slot, v)
			return v, nil
		}
	}

	if c.provider == nil {
		return types.Word{}, nil
	}
	v, err := c.provider.GetStorageAt(addr, slot, c.block)
	if err != nil {
		return types.Word{}, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	c.memoizeStorage(addr, slot, v)
	if c.backend != nil {
		if err := c.backend.Put(key, v.Bytes()); err != nil {
			return types.Word{}, errors.Wrap(ErrCacheError, err.Error())
		}
	}
	return v, nil
}

func (c *Cache) memoizeStorage(addr types.Address, slot, v types.Word) {
	if c.storage[addr] == nil {
		c.storage[addr] = make(map[types.Word]types.Word)
	}
	c.storage[addr][slot] = v
}

// BlockHeader resolves BLOCKHASH/TIMESTAMP/BASEFEE for the cache's pinned
// block, consulting the provider directly (headers are small and not worth
// the persistent-backend round trip).
func (c *Cache) BlockHeader() (BlockHeader, error) {
	if c.provider == nil {
		return BlockHeader{}, nil
	}
	h, err := c.provider.BlockHeader(c.block)
	if err != nil {
		return BlockHeader{}, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	return h, nil
}

// --- keying (spec §4.4: H(chain_id || block_number || "acct" || addr)) ----

func accountKey(chainID, block uint64, addr types.Address) []byte {
	return crypto.Keccak256(uint64Bytes(chainID), uint64Bytes(block), []byte("acct"), addr[:])
}

func storageKey(chainID, block uint64, addr types.Address, slot types.Word) []byte {
	return crypto.Keccak256(uint64Bytes(chainID), uint64Bytes(block), []byte("slot"), addr[:], slot.Bytes())
}

func codeKey(codeHash types.Word) []byte {
	return crypto.Keccak256([]byte("code"), codeHash.Bytes())
}

func uint64Bytes(v uint64) []byte {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b[:]
}

// encodeAccount/decodeAccount: a minimal fixed-width encoding — 8 bytes
// nonce, 32 bytes balance, 32 bytes code hash — per spec §6's "minimal
// encoding of (nonce, balance, code_hash)".
func encodeAccount(acc types.Account) []byte {
	out := make([]byte, 72)
	copy(out[0:8], uint64Bytes(acc.Nonce))
	if acc.Balance != nil {
		b := acc.Balance.Bytes32()
		copy(out[8:40], b[:])
	}
	copy(out[40:72], acc.CodeHash.Bytes())
	return out
}

func decodeAccount(raw []byte) types.Account {
	if len(raw) < 72 {
		return types.NewAccount()
	}
	var nonce uint64
	for i := 0; i < 8; i++ {
		nonce = nonce<<8 | uint64(raw[i])
	}
	balance := new(uint256.Int).SetBytes(raw[8:40])
	return types.Account{
		Nonce:    nonce,
		Balance:  balance,
		CodeHash: types.BytesToWord(raw[40:72]),
	}
}
