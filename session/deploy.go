package session

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

// DeployArgs parameterizes Deploy. Value is the wei sent with the creation
// transaction; InitValue is appended to the init code's constructor calldata
// (ABI-encoded constructor args the caller has already packed). TargetAddress,
// when non-zero, bypasses address derivation entirely and places the
// contract at that exact address (spec §4.2's deterministic-deployment
// path) instead of deriving CREATE/CREATE2's address from Owner/Salt.
type DeployArgs struct {
	Owner         types.Address
	Code          []byte
	InitValue     []byte
	Value         *uint256.Int
	Salt          *uint256.Int // non-nil selects CREATE2 over CREATE
	TargetAddress types.Address
	GasLimit      uint64
}

// Deploy runs a contract-creation invocation and returns its outcome plus
// the address the code ended up at.
func (s *Session) Deploy(args DeployArgs) (DeployResult, error) {
	if err := s.checkEIP3607(args.Owner); err != nil {
		return DeployResult{}, err
	}

	value := args.Value
	if value == nil {
		value = zeroValue()
	}
	gasLimit := args.GasLimit
	if gasLimit == 0 {
		gasLimit = s.config.BlockGasLimit
	}

	initCode := args.Code
	if len(args.InitValue) > 0 {
		initCode = append(append([]byte(nil), args.Code...), args.InitValue...)
	}

	evm, tracer := s.newEVM(args.Owner, zeroValue())
	logStart := len(s.state.Logs())

	var (
		ret     []byte
		addr    types.Address
		gasLeft uint64
		err     error
	)
	if !args.TargetAddress.IsZero() {
		addr = args.TargetAddress
		ret, gasLeft, err = evm.CreateAt(args.Owner, addr, initCode, gasLimit, value)
	} else {
		ret, addr, gasLeft, err = evm.Create(args.Owner, initCode, gasLimit, value, args.Salt, args.Salt != nil)
	}

	var gasUsed uint64
	if gasLimit >= gasLeft {
		gasUsed = gasLimit - gasLeft
	}
	refund := s.finishInvocation(gasUsed, tracer)
	gasLeft += refund

	logs := append([]types.Log(nil), s.state.Logs()[logStart:]...)
	rec := newRecord(gasLimit, ret, gasLeft, err, logs, tracer)
	return DeployResult{ExecutionRecord: rec, Address: addr}, nil
}
