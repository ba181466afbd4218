package vm

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/crypto"
	"github.com/sbip-sg/tevm/state"
	"github.com/sbip-sg/tevm/types"
)

// Config holds the options that vary per execution rather than per opcode.
type Config struct {
	MaxCallDepth int
	Tracer       Tracer // nil disables instrumentation
}

// EVM is the execution environment for one top-level call: the jump table,
// the journaled state it runs against, and the block/tx context every
// opcode can read. It implements Host itself and hands that narrower view
// to the interpreter loop and opcode handlers, so neither ever reaches past
// Host into the StateDB or journal directly.
type EVM struct {
	jumpTable *JumpTable
	state     *state.StateDB
	block     BlockContext
	tx        TxContext
	config    Config

	depth      int
	readOnly   bool
	returnData []byte

	host Host
}

// NewEVM constructs an EVM bound to sdb, ready to run a top-level call via
// Run, or to be driven through the Host interface by a caller that wants to
// dispatch CALL/CREATE itself (e.g. a session building a transaction).
func NewEVM(sdb *state.StateDB, block BlockContext, tx TxContext, config Config) *EVM {
	if config.MaxCallDepth == 0 {
		config.MaxCallDepth = MaxCallDepth
	}
	evm := &EVM{
		jumpTable: newMainJumpTable(),
		state:     sdb,
		block:     block,
		tx:        tx,
		config:    config,
	}
	evm.host = evm
	return evm
}

func (evm *EVM) ReadOnly() bool { return evm.readOnly }
func (evm *EVM) Depth() int     { return evm.depth }

// ReturnData returns the output of the most recently completed CALL/CREATE
// sub-frame, as read by RETURNDATASIZE/RETURNDATACOPY.
func (evm *EVM) ReturnData() []byte { return evm.returnData }

// Run executes contract's code against memory and a fresh stack, starting
// at pc 0, until it halts, reverts, or errors. Gas is charged in the order
// the Yellow Paper specifies: constant gas, then dynamic gas (computed
// against the not-yet-resized memory size), then the memory resize itself,
// then the opcode's handler.
func (evm *EVM) Run(contract *Contract, input []byte) ([]byte, error) {
	contract.Input = input

	var (
		pc    uint64
		stack = NewStack()
		mem   = NewMemory()
	)

	for {
		op := contract.GetOp(pc)
		operation := evm.jumpTable[op]
		if operation == nil || operation.execute == nil {
			return nil, ErrInvalidOpCode
		}

		sLen := stack.Len()
		if sLen < operation.minStack {
			return nil, ErrStackUnderflow
		}
		if sLen > operation.maxStack {
			return nil, ErrStackOverflow
		}

		if operation.constantGas > 0 {
			if !contract.UseGas(operation.constantGas) {
				return nil, ErrOutOfGas
			}
		}

		var memorySize uint64
		if operation.memorySize != nil {
			size := operation.memorySize(stack)
			if size > 0 {
				if size+31 < size {
					// A saturated end (see memEnd) cannot be rounded up to a word.
					return nil, ErrOutOfGas
				}
				memorySize = (size + 31) / 32 * 32
			}
		}

		if operation.dynamicGas != nil {
			cost, err := operation.dynamicGas(evm, contract, stack, mem, memorySize)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrOutOfGas, err)
			}
			if !contract.UseGas(cost) {
				return nil, ErrOutOfGas
			}
		}

		if memorySize > 0 && uint64(mem.Len()) < memorySize {
			mem.Grow(memorySize)
		}

		if evm.config.Tracer != nil {
			evm.config.Tracer.CaptureState(pc, op, contract, stack, mem, evm.depth, evm.host)
		}

		ret, err := operation.execute(&pc, evm, contract, mem, stack)
		if err != nil {
			if errors.Is(err, ErrExecutionReverted) {
				return ret, err
			}
			return nil, err
		}
		if operation.halts {
			return ret, nil
		}
		pc++
	}
}

// --- Host: balances, code, storage -----------------------------------------

func (evm *EVM) GetBalance(addr types.Address) *uint256.Int { return evm.state.GetBalance(addr) }

func (evm *EVM) AddBalance(addr types.Address, amount *uint256.Int) {
	evm.state.AddBalance(addr, amount)
}

func (evm *EVM) SubBalance(addr types.Address, amount *uint256.Int) {
	evm.state.SubBalance(addr, amount)
}

func (evm *EVM) GetCode(addr types.Address) []byte      { return evm.state.GetCode(addr) }
func (evm *EVM) GetCodeHash(addr types.Address) types.Word { return evm.state.GetCodeHash(addr) }
func (evm *EVM) GetCodeSize(addr types.Address) int      { return evm.state.GetCodeSize(addr) }

func (evm *EVM) GetState(addr types.Address, key types.Word) types.Word {
	return evm.state.GetState(addr, key)
}

func (evm *EVM) SetState(addr types.Address, key, value types.Word) {
	evm.state.SetState(addr, key, value)
}

func (evm *EVM) GetTransientState(addr types.Address, key types.Word) types.Word {
	return evm.state.GetTransientState(addr, key)
}

func (evm *EVM) SetTransientState(addr types.Address, key, value types.Word) {
	evm.state.SetTransientState(addr, key, value)
}

func (evm *EVM) Exist(addr types.Address) bool  { return evm.state.Exist(addr) }
func (evm *EVM) Empty(addr types.Address) bool  { return evm.state.Empty(addr) }
func (evm *EVM) CreateAccount(addr types.Address) { evm.state.CreateAccount(addr) }

// Selfdestruct marks addr for removal. The balance sweep to beneficiary is
// the caller's (opSelfdestruct's) responsibility, done before this is
// invoked; beneficiary is accepted here only so a tracer can attribute the
// sweep without re-deriving it from the stack.
func (evm *EVM) Selfdestruct(addr, beneficiary types.Address) {
	evm.state.Selfdestruct(addr)
}

func (evm *EVM) HasSelfDestructed(addr types.Address) bool { return evm.state.HasSelfDestructed(addr) }

// --- Host: access list, logs, refunds ---------------------------------------

func (evm *EVM) AddressInAccessList(addr types.Address) bool {
	return evm.state.AddressInAccessList(addr)
}

func (evm *EVM) SlotInAccessList(addr types.Address, slot types.Word) (bool, bool) {
	return evm.state.SlotInAccessList(addr, slot)
}

func (evm *EVM) AddAddressToAccessList(addr types.Address) { evm.state.AddAddressToAccessList(addr) }

func (evm *EVM) AddSlotToAccessList(addr types.Address, slot types.Word) {
	evm.state.AddSlotToAccessList(addr, slot)
}

func (evm *EVM) AddLog(l types.Log)      { evm.state.AddLog(l) }
func (evm *EVM) AddRefund(gas uint64)    { evm.state.AddRefund(gas) }
func (evm *EVM) SubRefund(gas uint64)    { evm.state.SubRefund(gas) }
func (evm *EVM) GetRefund() uint64       { return evm.state.Refund() }

func (evm *EVM) BlockContext() BlockContext { return evm.block }
func (evm *EVM) TxContext() TxContext       { return evm.tx }

// --- Host: call / create -----------------------------------------------------

// Call dispatches a CALL-family sub-frame. gas is already the post-EIP-150
// forwarded amount (the opcode handler applied the 63/64 cap and any 2300
// stipend before calling in); Call itself only enforces depth, handles the
// value transfer for CALL, and manages the checkpoint/revert around Run.
func (evm *EVM) Call(callType CallType, caller, addr types.Address, input []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	if evm.depth > evm.config.MaxCallDepth {
		return nil, gas, ErrDepth
	}
	if callType == CallTypeStaticCall || (callType == CallTypeCall && evm.readOnly) {
		if value != nil && !value.IsZero() && evm.readOnly {
			return nil, gas, ErrWriteProtection
		}
	}

	checkpoint := evm.state.Checkpoint()

	if callType == CallTypeCall {
		if value != nil && !value.IsZero() {
			if evm.state.GetBalance(caller).Lt(value) {
				return nil, gas, ErrInsufficientBalance
			}
			evm.state.SubBalance(caller, value)
			evm.state.AddBalance(addr, value)
		} else if !evm.state.Exist(addr) {
			evm.state.CreateAccount(addr)
		}
	}

	var codeAddr, execAddr types.Address
	switch callType {
	case CallTypeCallCode, CallTypeDelegateCall:
		codeAddr, execAddr = addr, caller
	default:
		codeAddr, execAddr = addr, addr
	}

	if p, ok := precompiles[codeAddr]; ok {
		ret, gasLeft, err := runPrecompile(p, input, gas)
		if err != nil {
			evm.state.RevertTo(checkpoint)
			return ret, gasLeft, err
		}
		evm.state.Commit(checkpoint)
		return ret, gasLeft, nil
	}

	code := evm.state.GetCode(codeAddr)
	if len(code) == 0 {
		evm.state.Commit(checkpoint)
		return nil, gas, nil
	}

	var contractValue *uint256.Int
	switch callType {
	case CallTypeDelegateCall:
		contractValue = nil
	case CallTypeStaticCall:
		contractValue = new(uint256.Int)
	default:
		contractValue = value
	}

	contract := NewContract(caller, execAddr, contractValue, gas)
	contract.Code = code
	contract.CodeHash = evm.state.GetCodeHash(codeAddr)

	prevReadOnly := evm.readOnly
	if callType == CallTypeStaticCall {
		evm.readOnly = true
	}

	if evm.config.Tracer != nil {
		evm.config.Tracer.CaptureEnter(callFrameType(callType), caller, addr, input, gas)
	}

	evm.depth++
	ret, err := evm.Run(contract, input)
	evm.depth--
	evm.readOnly = prevReadOnly

	if evm.config.Tracer != nil {
		evm.config.Tracer.CaptureExit(ret, gas-contract.Gas, err)
	}

	gasLeft := contract.Gas
	if err != nil {
		if errors.Is(err, ErrExecutionReverted) {
			evm.state.RevertTo(checkpoint)
			return ret, gasLeft, err
		}
		evm.state.RevertTo(checkpoint)
		return nil, 0, err
	}
	evm.state.Commit(checkpoint)
	return ret, gasLeft, nil
}

// Create dispatches CREATE/CREATE2. gas has already had the 63/64 forward
// rule applied by the opcode handler.
func (evm *EVM) Create(caller types.Address, code []byte, gas uint64, value *uint256.Int, salt *uint256.Int, create2 bool) ([]byte, types.Address, uint64, error) {
	if evm.depth > evm.config.MaxCallDepth {
		return nil, types.Address{}, gas, ErrDepth
	}
	if evm.readOnly {
		return nil, types.Address{}, gas, ErrWriteProtection
	}
	if uint64(len(code)) > MaxInitCodeSize {
		return nil, types.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}

	nonce := evm.state.GetNonce(caller)
	if nonce+1 == 0 {
		return nil, types.Address{}, gas, errors.New("vm: sender nonce overflow")
	}
	evm.state.SetNonce(caller, nonce+1)

	var addr types.Address
	if create2 {
		codeHash := crypto.Keccak256(code)
		var saltWord types.Word
		if salt != nil {
			saltWord = wordFromUint256(salt)
		}
		addr = crypto.CreateAddress2(caller, saltWord, codeHash)
	} else {
		addr = crypto.CreateAddress(caller, nonce)
	}

	if evm.state.GetNonce(addr) != 0 {
		return nil, addr, gas, ErrContractAddressCollision
	}
	if codeHash := evm.state.GetCodeHash(addr); !codeHash.IsZero() && codeHash != types.EmptyCodeHash {
		return nil, addr, gas, ErrContractAddressCollision
	}

	checkpoint := evm.state.Checkpoint()
	evm.state.CreateAccount(addr)
	evm.state.SetNonce(addr, 1)

	if value != nil && !value.IsZero() {
		if evm.state.GetBalance(caller).Lt(value) {
			evm.state.RevertTo(checkpoint)
			return nil, addr, gas, ErrInsufficientBalance
		}
		evm.state.SubBalance(caller, value)
		evm.state.AddBalance(addr, value)
	}

	contract := NewContract(caller, addr, value, gas)
	contract.Code = code

	frameType := FrameCreate
	if create2 {
		frameType = FrameCreate2
	}
	if evm.config.Tracer != nil {
		evm.config.Tracer.CaptureEnter(frameType, caller, addr, code, gas)
	}

	evm.depth++
	ret, err := evm.Run(contract, nil)
	evm.depth--

	if evm.config.Tracer != nil {
		evm.config.Tracer.CaptureExit(ret, gas-contract.Gas, err)
	}

	gasLeft := contract.Gas
	if err != nil {
		evm.state.RevertTo(checkpoint)
		if errors.Is(err, ErrExecutionReverted) {
			return ret, addr, gasLeft, err
		}
		return nil, addr, 0, err
	}

	if len(ret) > MaxCodeSize {
		evm.state.RevertTo(checkpoint)
		return nil, addr, 0, ErrMaxCodeSizeExceeded
	}
	if len(ret) > 0 && ret[0] == 0xEF {
		evm.state.RevertTo(checkpoint)
		return nil, addr, 0, ErrInvalidCode
	}
	depositGas := uint64(len(ret)) * GasCreateData
	if gasLeft < depositGas {
		evm.state.RevertTo(checkpoint)
		return nil, addr, 0, ErrCodeStoreOutOfGas
	}
	gasLeft -= depositGas
	evm.state.SetCode(addr, ret)
	evm.state.Commit(checkpoint)
	return ret, addr, gasLeft, nil
}

// CreateAt deploys init code directly at addr, bypassing address derivation
// and the collision check Create performs: the deterministic-deployment
// path a session driver uses to place a contract at a caller-chosen
// address for reproducible test fixtures. Balance already held at addr (an
// address funded before deployment, say) is preserved; only code and nonce
// are overwritten.
func (evm *EVM) CreateAt(caller, addr types.Address, code []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	if evm.depth > evm.config.MaxCallDepth {
		return nil, gas, ErrDepth
	}
	if evm.readOnly {
		return nil, gas, ErrWriteProtection
	}
	if uint64(len(code)) > MaxInitCodeSize {
		return nil, gas, ErrMaxInitCodeSizeExceeded
	}

	checkpoint := evm.state.Checkpoint()
	if !evm.state.Exist(addr) {
		evm.state.CreateAccount(addr)
	}
	evm.state.SetNonce(addr, 1)

	if value != nil && !value.IsZero() {
		if evm.state.GetBalance(caller).Lt(value) {
			evm.state.RevertTo(checkpoint)
			return nil, gas, ErrInsufficientBalance
		}
		evm.state.SubBalance(caller, value)
		evm.state.AddBalance(addr, value)
	}

	contract := NewContract(caller, addr, value, gas)
	contract.Code = code

	if evm.config.Tracer != nil {
		evm.config.Tracer.CaptureEnter(FrameCreate, caller, addr, code, gas)
	}

	evm.depth++
	ret, err := evm.Run(contract, nil)
	evm.depth--

	if evm.config.Tracer != nil {
		evm.config.Tracer.CaptureExit(ret, gas-contract.Gas, err)
	}

	gasLeft := contract.Gas
	if err != nil {
		evm.state.RevertTo(checkpoint)
		if errors.Is(err, ErrExecutionReverted) {
			return ret, gasLeft, err
		}
		return nil, 0, err
	}
	if len(ret) > MaxCodeSize {
		evm.state.RevertTo(checkpoint)
		return nil, 0, ErrMaxCodeSizeExceeded
	}
	if len(ret) > 0 && ret[0] == 0xEF {
		evm.state.RevertTo(checkpoint)
		return nil, 0, ErrInvalidCode
	}
	depositGas := uint64(len(ret)) * GasCreateData
	if gasLeft < depositGas {
		evm.state.RevertTo(checkpoint)
		return nil, 0, ErrCodeStoreOutOfGas
	}
	gasLeft -= depositGas
	evm.state.SetCode(addr, ret)
	evm.state.Commit(checkpoint)
	return ret, gasLeft, nil
}

// precompiles is the fixed address -> implementation map for 0x01-0x09,
// resolved once at package init since the set never varies per call.
var precompiles = crypto.Precompiles()

// runPrecompile charges RequiredGas and runs p, matching the gas-accounting
// shape of a regular Call: an out-of-gas or contract error still reports
// success/failure via the returned error rather than panicking.
func runPrecompile(p crypto.PrecompiledContract, input []byte, gas uint64) ([]byte, uint64, error) {
	cost := p.RequiredGas(input)
	if gas < cost {
		return nil, 0, ErrOutOfGas
	}
	out, err := p.Run(input)
	return out, gas - cost, err
}

func callFrameType(ct CallType) CallFrameType {
	switch ct {
	case CallTypeCallCode:
		return FrameCallCode
	case CallTypeDelegateCall:
		return FrameDelegateCall
	case CallTypeStaticCall:
		return FrameStaticCall
	default:
		return FrameCall
	}
}

