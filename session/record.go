package session

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
	"github.com/sbip-sg/tevm/vm"
)

// ExecutionRecord is what every top-level invocation (Deploy or Call)
// returns: the outcome, the gas accounted for it, and everything the
// instrumentation layer observed along the way.
type ExecutionRecord struct {
	Success  bool
	Reverted bool
	ReturnData []byte
	Err      error

	GasUsed uint64
	GasLeft uint64

	Logs []types.Log

	CallTree  *vm.CallFrame
	Coverage  *vm.Coverage // this invocation's own coverage, not the session total
	Storage   []vm.StorageAccess
	Heuristics vm.Heuristics
}

// DeployResult is an ExecutionRecord plus the address the contract was
// deployed to.
type DeployResult struct {
	ExecutionRecord
	Address types.Address
}

func newRecord(gasLimit uint64, ret []byte, gasLeft uint64, err error, logs []types.Log, tracer *vm.AnalysisTracer) ExecutionRecord {
	rec := ExecutionRecord{
		ReturnData: ret,
		GasLeft:    gasLeft,
		Err:        err,
	}
	if gasLimit >= gasLeft {
		rec.GasUsed = gasLimit - gasLeft
	}
	switch {
	case err == nil:
		rec.Success = true
	case err == vm.ErrExecutionReverted:
		rec.Reverted = true
	}
	rec.Logs = logs
	if tracer != nil {
		rec.CallTree = tracer.CallTree()
		rec.Coverage = tracer.Coverage()
		rec.Storage = tracer.StorageAccesses()
		rec.Heuristics = tracer.Heuristics()
	}
	return rec
}

// zeroValue is the canonical zero uint256, used whenever a caller passes a
// nil value/gas price and the session substitutes the implicit default.
func zeroValue() *uint256.Int { return new(uint256.Int) }
