package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

// Tracer is the instrumentation hook the interpreter loop drives on every
// opcode and every call-frame transition. It mirrors the shape of the
// teacher's EVMLogger but is narrower: this executor's consumers want
// coverage, a call tree, and heuristic bug flags, not a general-purpose
// streaming debug trace.
type Tracer interface {
	CaptureState(pc uint64, op OpCode, contract *Contract, stack *Stack, mem *Memory, depth int, host Host)
	CaptureEnter(callType CallFrameType, from, to types.Address, input []byte, gas uint64)
	CaptureExit(output []byte, gasUsed uint64, err error)
}

// CallFrameType labels a call-tree node with the opcode that created it.
type CallFrameType uint8

const (
	FrameCall CallFrameType = iota
	FrameCallCode
	FrameDelegateCall
	FrameStaticCall
	FrameCreate
	FrameCreate2
)

func (t CallFrameType) String() string {
	switch t {
	case FrameCall:
		return "CALL"
	case FrameCallCode:
		return "CALLCODE"
	case FrameDelegateCall:
		return "DELEGATECALL"
	case FrameStaticCall:
		return "STATICCALL"
	case FrameCreate:
		return "CREATE"
	case FrameCreate2:
		return "CREATE2"
	default:
		return "UNKNOWN"
	}
}

// CallFrame is one node of the call tree built during execution: the frame
// that invoked it, what it ran, and (once it returns) its outcome.
type CallFrame struct {
	Type     CallFrameType
	From, To types.Address
	Input    []byte
	Gas      uint64
	Output   []byte
	GasUsed  uint64
	Err      error
	Children []*CallFrame
}

// Heuristics are the heuristic bug indicators flagged across one traced
// execution, gated per-indicator by DetectorConfig so callers only pay for
// the signals they asked for.
type Heuristics struct {
	Selfdestruct       bool
	TxOriginCheck      bool
	Timestamp          bool
	Blockhash          bool
	Blocknumber        bool
	DivByZero          bool
	ArithmeticOverflow bool
}

// or ORs src into h in place, the merge rule a reverted frame's flags never
// get: a frame that errors out contributes none of its flags to its parent.
func (h *Heuristics) or(src Heuristics) {
	h.Selfdestruct = h.Selfdestruct || src.Selfdestruct
	h.TxOriginCheck = h.TxOriginCheck || src.TxOriginCheck
	h.Timestamp = h.Timestamp || src.Timestamp
	h.Blockhash = h.Blockhash || src.Blockhash
	h.Blocknumber = h.Blocknumber || src.Blocknumber
	h.DivByZero = h.DivByZero || src.DivByZero
	h.ArithmeticOverflow = h.ArithmeticOverflow || src.ArithmeticOverflow
}

// DetectorConfig gates each heuristic independently; overflow detection
// defaults off since it depends on the target's compiler version (only
// pre-0.8 Solidity lacks checked arithmetic, so blanket-enabling it
// against checked bytecode would flag false positives).
type DetectorConfig struct {
	EnableSelfdestructDetection bool
	EnableTxOriginDetection     bool
	EnableTimestampDetection    bool
	EnableBlockhashDetection    bool
	EnableBlocknumberDetection  bool
	EnableDivZeroDetection      bool
	EnableOverflowDetection     bool
	EnablePCCoverage            bool
}

// Coverage is a per-code-hash bitset over executed program counters,
// unioned across every frame that ran that code body, stable across
// snapshot/restore since it is keyed by code hash rather than address.
type Coverage struct {
	bits map[types.Word]map[uint64]struct{}
}

func newCoverage() *Coverage {
	return &Coverage{bits: make(map[types.Word]map[uint64]struct{})}
}

func (c *Coverage) mark(codeHash types.Word, pc uint64) {
	set, ok := c.bits[codeHash]
	if !ok {
		set = make(map[uint64]struct{})
		c.bits[codeHash] = set
	}
	set[pc] = struct{}{}
}

// PCs returns the sorted set of executed program counters for codeHash.
func (c *Coverage) PCs(codeHash types.Word) []uint64 {
	set := c.bits[codeHash]
	out := make([]uint64, 0, len(set))
	for pc := range set {
		out = append(out, pc)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Len returns the number of distinct (codeHash, pc) pairs covered.
func (c *Coverage) Len() int {
	n := 0
	for _, set := range c.bits {
		n += len(set)
	}
	return n
}

// Merge unions other into c, in place. Used by a session to fold one
// invocation's coverage into its cumulative, session-wide set.
func (c *Coverage) Merge(other *Coverage) {
	for codeHash, set := range other.bits {
		for pc := range set {
			c.mark(codeHash, pc)
		}
	}
}

// NewCoverage returns an empty Coverage, for callers that accumulate it
// across multiple tracer lifetimes (e.g. a session's cumulative set).
func NewCoverage() *Coverage { return newCoverage() }

// StorageAccess records one SLOAD/SSTORE/TLOAD/TSTORE observed during
// execution, in program order.
type StorageAccess struct {
	Address types.Address
	Key     types.Word
	Value   types.Word
	Prev    types.Word
	Write   bool
	Transient bool
	PC      uint64
	Depth   int
}

// frameAccum buffers the storage accesses and heuristic flags raised within
// one call frame. It is held off to the side of the frame's CallFrame node
// and only folded into the parent's accumulator when the frame returns
// without error; a reverted or otherwise failed frame's accumulator is
// simply dropped, so nothing it touched leaks into the trace.
type frameAccum struct {
	flags   Heuristics
	storage []StorageAccess
}

func (a *frameAccum) merge(src *frameAccum) {
	a.flags.or(src.flags)
	a.storage = append(a.storage, src.storage...)
}

// AnalysisTracer is the concrete Tracer the session package attaches to
// each invocation: it builds the call tree, accumulates PC coverage,
// records storage accesses, and raises heuristic flags. DetectorConfig
// gates coverage and the heuristic flags; the call tree and storage
// accesses are recorded whatever the config. Storage accesses and
// heuristic flags are scoped per call frame and only merged up once a frame
// returns successfully, so a revert anywhere in the call tree contributes
// nothing from the reverted subtree.
type AnalysisTracer struct {
	config   DetectorConfig
	coverage *Coverage
	storage  []StorageAccess
	flags    Heuristics

	root  *CallFrame
	stack []*CallFrame
	accum []*frameAccum
}

// NewAnalysisTracer returns a tracer gated by config. Passing a zero-value
// DetectorConfig produces a tracer that still builds the call tree (cheap)
// but records no coverage or heuristic flags.
func NewAnalysisTracer(config DetectorConfig) *AnalysisTracer {
	return &AnalysisTracer{
		config:   config,
		coverage: newCoverage(),
	}
}

func (t *AnalysisTracer) CaptureState(pc uint64, op OpCode, contract *Contract, stack *Stack, mem *Memory, depth int, host Host) {
	if t.config.EnablePCCoverage {
		t.coverage.mark(contract.CodeHash, pc)
	}
	if len(t.accum) == 0 {
		return
	}
	acc := t.accum[len(t.accum)-1]

	switch op {
	case SELFDESTRUCT:
		if t.config.EnableSelfdestructDetection {
			acc.flags.Selfdestruct = true
		}
	case ORIGIN:
		if t.config.EnableTxOriginDetection {
			acc.flags.TxOriginCheck = true
		}
	case TIMESTAMP:
		if t.config.EnableTimestampDetection {
			acc.flags.Timestamp = true
		}
	case BLOCKHASH:
		if t.config.EnableBlockhashDetection {
			acc.flags.Blockhash = true
		}
	case NUMBER:
		if t.config.EnableBlocknumberDetection {
			acc.flags.Blocknumber = true
		}
	case DIV, SDIV, MOD, SMOD:
		if t.config.EnableDivZeroDetection && stack.Len() >= 2 {
			if stack.Back(1).IsZero() {
				acc.flags.DivByZero = true
			}
		}
	case ADD, MUL:
		if t.config.EnableOverflowDetection && stack.Len() >= 2 {
			if opOverflows(op, stack.Back(0), stack.Back(1)) {
				acc.flags.ArithmeticOverflow = true
			}
		}
	case SUB:
		if t.config.EnableOverflowDetection && stack.Len() >= 2 {
			if stack.Back(0).Lt(stack.Back(1)) {
				acc.flags.ArithmeticOverflow = true
			}
		}
	case SLOAD, SSTORE, TLOAD, TSTORE:
		t.recordStorageOp(acc, op, contract, stack, host, pc, depth)
	}
}

func (t *AnalysisTracer) recordStorageOp(acc *frameAccum, op OpCode, contract *Contract, stack *Stack, host Host, pc uint64, depth int) {
	if stack.Len() < 1 {
		return
	}
	key := wordFromUint256(stack.Back(0))
	access := StorageAccess{Address: contract.Address, Key: key, PC: pc, Depth: depth}
	switch op {
	case SLOAD:
		access.Value = host.GetState(contract.Address, key)
		access.Prev = access.Value
	case TLOAD:
		access.Transient = true
		access.Value = host.GetTransientState(contract.Address, key)
		access.Prev = access.Value
	case SSTORE:
		access.Write = true
		access.Prev = host.GetState(contract.Address, key)
		if stack.Len() >= 2 {
			access.Value = wordFromUint256(stack.Back(1))
		}
	case TSTORE:
		access.Write, access.Transient = true, true
		access.Prev = host.GetTransientState(contract.Address, key)
		if stack.Len() >= 2 {
			access.Value = wordFromUint256(stack.Back(1))
		}
	}
	acc.storage = append(acc.storage, access)
}

// opOverflows reports whether ADD/MUL of the top two pre-execution stack
// words would wrap past 2^256. This is a best-effort heuristic: wrapping
// arithmetic is routine in checked Solidity (>=0.8) bytecode after its own
// require-revert guard already ran, so this flag is only meaningful against
// pre-0.8 targets, per EnableOverflowDetection's doc comment.
func opOverflows(op OpCode, a, b *uint256.Int) bool {
	var (
		result   uint256.Int
		overflow bool
	)
	switch op {
	case ADD:
		_, overflow = result.AddOverflow(a, b)
	case MUL:
		_, overflow = result.MulOverflow(a, b)
	}
	return overflow
}

func (t *AnalysisTracer) CaptureEnter(callType CallFrameType, from, to types.Address, input []byte, gas uint64) {
	frame := &CallFrame{Type: callType, From: from, To: to, Input: input, Gas: gas}
	if t.root == nil {
		t.root = frame
	} else if len(t.stack) > 0 {
		parent := t.stack[len(t.stack)-1]
		parent.Children = append(parent.Children, frame)
	}
	t.stack = append(t.stack, frame)
	t.accum = append(t.accum, &frameAccum{})
}

// CaptureExit closes the innermost frame. A frame that returned an error
// (including a revert) contributes none of its storage accesses or
// heuristic flags upward: its accumulator is simply discarded instead of
// merged, per the trace-isolation rule a reverted frame must not pollute
// its caller's record.
func (t *AnalysisTracer) CaptureExit(output []byte, gasUsed uint64, err error) {
	if len(t.stack) == 0 {
		return
	}
	frame := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	frame.Output = output
	frame.GasUsed = gasUsed
	frame.Err = err

	if len(t.accum) == 0 {
		return
	}
	acc := t.accum[len(t.accum)-1]
	t.accum = t.accum[:len(t.accum)-1]

	if err != nil {
		return
	}
	if len(t.accum) > 0 {
		t.accum[len(t.accum)-1].merge(acc)
	} else {
		t.flags.or(acc.flags)
		t.storage = append(t.storage, acc.storage...)
	}
}

// Coverage returns the accumulated PC coverage bitmap.
func (t *AnalysisTracer) Coverage() *Coverage { return t.coverage }

// StorageAccesses returns every SLOAD/SSTORE/TLOAD/TSTORE observed, in
// program order.
func (t *AnalysisTracer) StorageAccesses() []StorageAccess { return t.storage }

// Heuristics returns the bug-pattern flags raised during the trace.
func (t *AnalysisTracer) Heuristics() Heuristics { return t.flags }

// CallTree returns the root of the call tree, or nil if no frame was ever
// entered (a tracer attached to an EVM that ran zero CALL/CREATE frames).
func (t *AnalysisTracer) CallTree() *CallFrame { return t.root }
