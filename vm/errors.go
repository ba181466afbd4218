package vm

import "errors"

var (
	ErrOutOfGas              = errors.New("vm: out of gas")
	ErrStackOverflow         = errors.New("vm: stack overflow")
	ErrStackUnderflow        = errors.New("vm: stack underflow")
	ErrInvalidJump           = errors.New("vm: invalid jump destination")
	ErrInvalidOpCode         = errors.New("vm: invalid opcode")
	ErrWriteProtection       = errors.New("vm: write protection (static call)")
	ErrExecutionReverted     = errors.New("vm: execution reverted")
	ErrReturnDataOutOfBounds = errors.New("vm: return data out of bounds")
	ErrDepth                 = errors.New("vm: max call depth exceeded")
	ErrInsufficientBalance   = errors.New("vm: insufficient balance for transfer")
	ErrContractAddressCollision = errors.New("vm: contract address collision")
	ErrCodeStoreOutOfGas     = errors.New("vm: contract creation code storage out of gas")
	ErrMaxCodeSizeExceeded   = errors.New("vm: max code size exceeded")
	ErrMaxInitCodeSizeExceeded = errors.New("vm: max init code size exceeded")
	ErrInvalidCode           = errors.New("vm: invalid code: must not begin with 0xef (EIP-3541)")
)
