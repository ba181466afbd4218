package vm

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

func newHeuristicsHost(t *testing.T) Host {
	t.Helper()
	evm, _ := newTestEVM(t)
	return evm
}

func TestCaptureStateFlagsNumberHeuristic(t *testing.T) {
	host := newHeuristicsHost(t)
	tracer := NewAnalysisTracer(DetectorConfig{EnableBlocknumberDetection: true})
	contract := NewContract(types.Address{}, types.Address{}, new(uint256.Int), 100_000)

	tracer.CaptureEnter(FrameCall, types.Address{}, types.Address{}, nil, 100_000)
	tracer.CaptureState(0, NUMBER, contract, NewStack(), NewMemory(), 1, host)
	tracer.CaptureExit(nil, 0, nil)

	if !tracer.Heuristics().Blocknumber {
		t.Errorf("expected Blocknumber flag set after a NUMBER opcode")
	}
}

func TestCaptureStateNumberHeuristicGatedByConfig(t *testing.T) {
	host := newHeuristicsHost(t)
	tracer := NewAnalysisTracer(DetectorConfig{}) // every detector off
	contract := NewContract(types.Address{}, types.Address{}, new(uint256.Int), 100_000)

	tracer.CaptureEnter(FrameCall, types.Address{}, types.Address{}, nil, 100_000)
	tracer.CaptureState(0, NUMBER, contract, NewStack(), NewMemory(), 1, host)
	tracer.CaptureExit(nil, 0, nil)

	if tracer.Heuristics().Blocknumber {
		t.Errorf("expected Blocknumber flag to stay clear when detection is disabled")
	}
}

// TestRevertedFrameContributesNothing exercises the isolation rule a
// reverted sub-frame must observe: the flags it raised and the storage
// accesses it made must not appear in the parent's (or the tracer's final)
// record once the frame exits with an error.
func TestRevertedFrameContributesNothing(t *testing.T) {
	host := newHeuristicsHost(t)
	tracer := NewAnalysisTracer(DetectorConfig{
		EnableTimestampDetection: true,
		EnablePCCoverage:         true,
	})
	outer := NewContract(types.Address{}, types.Address{}, new(uint256.Int), 100_000)
	inner := NewContract(types.Address{}, types.Address{}, new(uint256.Int), 100_000)

	// Outer frame: a SLOAD that must survive.
	tracer.CaptureEnter(FrameCall, types.Address{}, types.Address{}, nil, 100_000)
	stack := NewStack()
	stack.Push(new(uint256.Int).SetUint64(1)) // SLOAD key
	tracer.CaptureState(0, SLOAD, outer, stack, NewMemory(), 1, host)

	// Inner frame: raises TIMESTAMP and does a storage write, then reverts.
	tracer.CaptureEnter(FrameCall, types.Address{}, types.Address{}, nil, 50_000)
	tracer.CaptureState(0, TIMESTAMP, inner, NewStack(), NewMemory(), 2, host)
	innerStack := NewStack()
	innerStack.Push(new(uint256.Int).SetUint64(7)) // value
	innerStack.Push(new(uint256.Int).SetUint64(2)) // key (SSTORE reads Back(0)=key, Back(1)=value)
	tracer.CaptureState(1, SSTORE, inner, innerStack, NewMemory(), 2, host)
	tracer.CaptureExit(nil, 0, errors.New("reverted"))

	tracer.CaptureExit(nil, 0, nil)

	heur := tracer.Heuristics()
	if heur.Timestamp {
		t.Errorf("expected Timestamp flag raised inside the reverted frame to be dropped")
	}
	for _, acc := range tracer.StorageAccesses() {
		if acc.Write {
			t.Errorf("expected the reverted frame's SSTORE to be dropped from the trace, found %+v", acc)
		}
	}
	if len(tracer.StorageAccesses()) != 1 {
		t.Errorf("expected only the surviving outer SLOAD in the trace, got %d entries", len(tracer.StorageAccesses()))
	}
}

func TestStorageAccessRecordsPrevPCDepth(t *testing.T) {
	host := newHeuristicsHost(t)
	tracer := NewAnalysisTracer(DetectorConfig{})
	contract := NewContract(types.Address{}, types.Address{}, new(uint256.Int), 100_000)

	tracer.CaptureEnter(FrameCall, types.Address{}, types.Address{}, nil, 100_000)
	stack := NewStack()
	stack.Push(new(uint256.Int).SetUint64(99)) // key
	tracer.CaptureState(5, SLOAD, contract, stack, NewMemory(), 3, host)
	tracer.CaptureExit(nil, 0, nil)

	accesses := tracer.StorageAccesses()
	if len(accesses) != 1 {
		t.Fatalf("expected 1 storage access, got %d", len(accesses))
	}
	got := accesses[0]
	if got.PC != 5 || got.Depth != 3 {
		t.Errorf("expected PC=5 Depth=3, got PC=%d Depth=%d", got.PC, got.Depth)
	}
	if got.Prev != got.Value {
		t.Errorf("expected a read's Prev to equal its Value, got Prev=%s Value=%s", got.Prev.Hex(), got.Value.Hex())
	}
}
