// Package session is the stateful façade an embedder drives: one Session
// owns a world-state database, an optional forked-state cache, and the EVM
// configuration every call runs against. It is the aggregation point spec
// §2's data flow describes: user call -> session -> frame dispatcher ->
// interpreter -> journal commit/revert -> aggregated record.
package session

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/sbip-sg/tevm/log"
	"github.com/sbip-sg/tevm/provider"
	"github.com/sbip-sg/tevm/state"
	"github.com/sbip-sg/tevm/types"
	"github.com/sbip-sg/tevm/vm"
)

// ErrSenderHasCode is returned by Deploy/Call when EIP-3607 is enabled and
// the caller address already holds contract code (a transaction cannot
// originate from a contract account, mirroring post-London mainnet policy).
var ErrSenderHasCode = errors.New("session: sender account has code (EIP-3607)")

// BlockEnv is the block-level environment SetBlock installs; it feeds
// vm.BlockContext for every subsequent invocation until changed again.
type BlockEnv struct {
	Number      uint64
	Time        uint64
	Coinbase    types.Address
	PrevRandao  types.Word
	BaseFee     *uint256.Int
	BlobBaseFee *uint256.Int
	GasLimit    uint64

	// Hashes seeds BLOCKHASH results for specific block numbers (mainnet
	// only exposes the 256 most recent; anything else resolves to zero).
	Hashes map[uint64]types.Word
}

// Session is one independent executor instance: its own state, its own
// optional provider cache, its own cumulative coverage. Sessions never
// share mutable state with each other (spec §5).
type Session struct {
	config Config
	log    *log.Logger

	state *state.StateDB
	cache *provider.Cache

	block BlockEnv
	snaps *snapshotStore

	coverage *vm.Coverage
}

// New constructs a Session. A zero-value Config is filled in with
// DefaultConfig's values. The state database is always a local, unforked
// one: New ignores ForkURL/ForkBlock and takes no Provider; NewForked is the
// constructor that backs state with a read-through cache.
func New(cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		config:   cfg,
		log:      cfg.Logger,
		state:    state.New(),
		snaps:    newSnapshotStore(),
		coverage: vm.NewCoverage(),
		block:    defaultBlockEnv(cfg),
	}
}

// NewForked constructs a Session whose state database reads through p for
// any account or slot never touched locally, per spec §4.4. backend may be
// nil for a memory-only cache.
func NewForked(cfg Config, p provider.Provider, backend provider.Backend) *Session {
	cfg = cfg.withDefaults()
	cache := provider.New(cfg.ChainID, cfg.ForkBlock, p, backend)
	s := &Session{
		config:   cfg,
		log:      cfg.Logger,
		state:    state.NewForked(cache),
		cache:    cache,
		snaps:    newSnapshotStore(),
		coverage: vm.NewCoverage(),
		block:    defaultBlockEnv(cfg),
	}
	if hdr, err := cache.BlockHeader(); err == nil {
		s.block.Time = hdr.Timestamp
		if hdr.BaseFee != nil {
			s.block.BaseFee = hdr.BaseFee
		}
	}
	return s
}

func defaultBlockEnv(cfg Config) BlockEnv {
	return BlockEnv{
		Number:   1,
		GasLimit: cfg.BlockGasLimit,
		BaseFee:  new(uint256.Int),
	}
}

// SetBlock installs a new block environment, affecting every invocation
// from this point on (COINBASE, NUMBER, TIMESTAMP, PREVRANDAO, BASEFEE,
// BLOCKHASH).
func (s *Session) SetBlock(env BlockEnv) { s.block = env }

// Config returns the session's effective configuration.
func (s *Session) Config() Config { return s.config }

// SetBalance sets addr's balance directly, bypassing any call/transfer
// semantics — a test-fixture operation, not a transaction.
func (s *Session) SetBalance(addr types.Address, amount *uint256.Int) {
	s.state.SetBalance(addr, amount)
}

// GetBalance returns addr's current balance.
func (s *Session) GetBalance(addr types.Address) *uint256.Int {
	return s.state.GetBalance(addr)
}

// SetNonce sets addr's nonce directly.
func (s *Session) SetNonce(addr types.Address, nonce uint64) {
	s.state.SetNonce(addr, nonce)
}

// GetNonce returns addr's current nonce.
func (s *Session) GetNonce(addr types.Address) uint64 { return s.state.GetNonce(addr) }

// GetCode returns the deployed code at addr, or nil if addr has none.
func (s *Session) GetCode(addr types.Address) []byte { return s.state.GetCode(addr) }

// Coverage returns the cumulative program-counter coverage across every
// invocation run in this session so far, stable across snapshot restores
// (spec §4.5: "union of per-frame bitmaps; stable across snapshots").
func (s *Session) Coverage() *vm.Coverage { return s.coverage }

func (s *Session) blockContext() vm.BlockContext {
	bc := vm.BlockContext{
		Coinbase:    s.block.Coinbase,
		BlockNumber: s.block.Number,
		Time:        s.block.Time,
		PrevRandao:  s.block.PrevRandao,
		ChainID:     s.config.ChainID,
		BaseFee:     s.block.BaseFee,
		BlobBaseFee: s.block.BlobBaseFee,
		GetHash: func(n uint64) types.Word {
			if n >= s.block.Number || s.block.Number-n > 256 {
				return types.Word{}
			}
			return s.block.Hashes[n]
		},
	}
	if !s.config.DisableBlockGasLimit {
		bc.GasLimit = s.block.GasLimit
	}
	if s.config.DisableBaseFee {
		bc.BaseFee = new(uint256.Int)
	}
	return bc
}

func (s *Session) checkEIP3607(addr types.Address) error {
	if s.config.DisableEIP3607 {
		return nil
	}
	if s.state.GetCodeHash(addr) != types.EmptyCodeHash && s.state.Exist(addr) {
		return ErrSenderHasCode
	}
	return nil
}

// newEVM builds a fresh *vm.EVM sharing the session's StateDB and block
// context, with a fresh per-invocation tracer: heuristic flags and the call
// tree reset every top-level invocation, while coverage is merged into the
// session's cumulative set once the invocation returns.
func (s *Session) newEVM(origin types.Address, gasPrice *uint256.Int) (*vm.EVM, *vm.AnalysisTracer) {
	tracer := vm.NewAnalysisTracer(s.config.detectorConfig())
	tx := vm.TxContext{Origin: origin, GasPrice: gasPrice}
	evm := vm.NewEVM(s.state, s.blockContext(), tx, vm.Config{Tracer: tracer})
	return evm, tracer
}

// finishInvocation runs end-of-invocation cleanup and reports the capped
// EIP-3529 gas refund this invocation accumulated, for the caller to fold
// into its gas accounting. It must run exactly once per top-level Call or
// Deploy, after the EVM has returned and no further revert is possible.
func (s *Session) finishInvocation(gasUsed uint64, tracer *vm.AnalysisTracer) uint64 {
	s.state.Finalize()
	s.state.ClearTransientStorage()
	s.coverage.Merge(tracer.Coverage())

	refund := s.state.ResetRefund()
	if cap := gasUsed / 5; refund > cap {
		refund = cap
	}
	return refund
}
