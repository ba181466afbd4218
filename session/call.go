package session

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
	"github.com/sbip-sg/tevm/vm"
)

// CallArgs parameterizes Call. GasLimit of zero uses the session's block gas
// limit, matching Deploy's convention.
type CallArgs struct {
	From     types.Address
	To       types.Address
	Data     []byte
	Value    *uint256.Int
	GasLimit uint64
}

// Call runs a message call against a previously deployed contract (or an
// EOA/empty address, which simply transfers value and returns no data).
func (s *Session) Call(args CallArgs) (ExecutionRecord, error) {
	if err := s.checkEIP3607(args.From); err != nil {
		return ExecutionRecord{}, err
	}

	value := args.Value
	if value == nil {
		value = zeroValue()
	}
	gasLimit := args.GasLimit
	if gasLimit == 0 {
		gasLimit = s.config.BlockGasLimit
	}

	evm, tracer := s.newEVM(args.From, zeroValue())
	logStart := len(s.state.Logs())
	ret, gasLeft, err := evm.Call(vm.CallTypeCall, args.From, args.To, args.Data, gasLimit, value)

	var gasUsed uint64
	if gasLimit >= gasLeft {
		gasUsed = gasLimit - gasLeft
	}
	refund := s.finishInvocation(gasUsed, tracer)
	gasLeft += refund

	logs := append([]types.Log(nil), s.state.Logs()[logStart:]...)
	return newRecord(gasLimit, ret, gasLeft, err, logs, tracer), nil
}

// StaticCall runs a read-only message call: any attempted state mutation
// aborts the call with ErrWriteProtection rather than silently no-op'ing.
func (s *Session) StaticCall(args CallArgs) (ExecutionRecord, error) {
	gasLimit := args.GasLimit
	if gasLimit == 0 {
		gasLimit = s.config.BlockGasLimit
	}

	evm, tracer := s.newEVM(args.From, zeroValue())
	logStart := len(s.state.Logs())
	ret, gasLeft, err := evm.Call(vm.CallTypeStaticCall, args.From, args.To, args.Data, gasLimit, nil)

	var gasUsed uint64
	if gasLimit >= gasLeft {
		gasUsed = gasLimit - gasLeft
	}
	refund := s.finishInvocation(gasUsed, tracer)
	gasLeft += refund

	logs := append([]types.Log(nil), s.state.Logs()[logStart:]...)
	return newRecord(gasLimit, ret, gasLeft, err, logs, tracer), nil
}
