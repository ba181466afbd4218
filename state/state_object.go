package state

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/crypto"
	"github.com/sbip-sg/tevm/types"
)

// stateObject is the in-memory representation of one account: its
// balance/nonce/code, and the storage slots touched so far. Committed
// storage is read through to the forked-state provider on first access
// and cached here; dirtyStorage holds every local write (a journal revert
// restores or removes entries, commit keeps them). Neither map is cleared
// between top-level calls.
type stateObject struct {
	address types.Address
	account types.Account

	code []byte

	originStorage map[types.Word]types.Word // values as first read from the backing reader (or zero)
	dirtyStorage  map[types.Word]types.Word

	selfDestructed bool
	newlyCreated   bool // created within the current call (for EIP-6780)
}

func newStateObject(addr types.Address) *stateObject {
	return &stateObject{
		address:       addr,
		account:       types.NewAccount(),
		originStorage: make(map[types.Word]types.Word),
		dirtyStorage:  make(map[types.Word]types.Word),
	}
}

func (o *stateObject) copy() *stateObject {
	cp := &stateObject{
		address:        o.address,
		account:        o.account,
		code:           o.code,
		originStorage:  make(map[types.Word]types.Word, len(o.originStorage)),
		dirtyStorage:   make(map[types.Word]types.Word, len(o.dirtyStorage)),
		selfDestructed: o.selfDestructed,
		newlyCreated:   o.newlyCreated,
	}
	cp.account.Balance = new(uint256.Int).Set(o.account.Balance)
	for k, v := range o.originStorage {
		cp.originStorage[k] = v
	}
	for k, v := range o.dirtyStorage {
		cp.dirtyStorage[k] = v
	}
	return cp
}

func (o *stateObject) setCode(code []byte) {
	o.code = code
	if len(code) == 0 {
		o.account.CodeHash = types.EmptyCodeHash
	} else {
		o.account.CodeHash = crypto.Keccak256Word(code)
	}
}

func (o *stateObject) empty() bool { return o.account.IsEmpty() }
