package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/crypto"
	"github.com/sbip-sg/tevm/types"
)

// executionFunc is the signature every opcode handler implements. pc is a
// pointer so JUMP/JUMPI/PUSHn can redirect or advance it themselves; the
// interpreter loop adds one to pc after every non-halting handler, so a
// handler leaves pc one short of the next instruction to run. Execution
// ends after an operation marked halts (or on an error); the []byte it
// returns is the frame's return/revert data.
type executionFunc func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error)

// --- arithmetic --------------------------------------------------------

func opAdd(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Add(&x, y)
	return nil, nil
}

func opSub(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Sub(&x, y)
	return nil, nil
}

func opMul(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Mul(&x, y)
	return nil, nil
}

func opDiv(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Div(&x, y)
	return nil, nil
}

func opSdiv(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.SDiv(&x, y)
	return nil, nil
}

func opMod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Mod(&x, y)
	return nil, nil
}

func opSmod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.SMod(&x, y)
	return nil, nil
}

func opAddmod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y, z := stack.Pop(), stack.Pop(), stack.Peek()
	z.AddMod(&x, &y, z)
	return nil, nil
}

func opMulmod(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y, z := stack.Pop(), stack.Pop(), stack.Peek()
	z.MulMod(&x, &y, z)
	return nil, nil
}

func opExp(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	base, exponent := stack.Pop(), stack.Peek()
	exponent.Exp(&base, exponent)
	return nil, nil
}

func opSignExtend(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	back, num := stack.Pop(), stack.Peek()
	num.ExtendSign(num, &back)
	return nil, nil
}

// --- comparison / bitwise ------------------------------------------------

func opLt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opGt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSlt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSgt(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opEq(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opIsZero(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil, nil
}

func opAnd(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.And(&x, y)
	return nil, nil
}

func opOr(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Or(&x, y)
	return nil, nil
}

func opXor(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Xor(&x, y)
	return nil, nil
}

func opNot(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	x.Not(x)
	return nil, nil
}

func opByte(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	th, val := stack.Pop(), stack.Peek()
	val.Byte(&th)
	return nil, nil
}

func opSHL(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	shift, value := stack.Pop(), stack.Peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opSHR(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	shift, value := stack.Pop(), stack.Peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opSAR(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	shift, value := stack.Pop(), stack.Peek()
	if shift.GtUint64(255) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}
		return nil, nil
	}
	value.SRsh(value, uint(shift.Uint64()))
	return nil, nil
}

// --- keccak --------------------------------------------------------------

func opKeccak256(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Peek()
	data := memory.Get(offset.Uint64(), size.Uint64())
	hash := crypto.Keccak256(data)
	size.SetBytes(hash)
	return nil, nil
}

// --- environment -----------------------------------------------------------

func opAddress(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := uint256FromAddress(contract.Address)
	stack.Push(&v)
	return nil, nil
}

func opBalance(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	slot := stack.Peek()
	addr := addressFromUint256(slot)
	slot.Set(evm.host.GetBalance(addr))
	return nil, nil
}

func opOrigin(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := uint256FromAddress(evm.host.TxContext().Origin)
	stack.Push(&v)
	return nil, nil
}

func opCaller(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := uint256FromAddress(contract.CallerAddress)
	stack.Push(&v)
	return nil, nil
}

func opCallValue(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := new(uint256.Int)
	if contract.Value != nil {
		v.Set(contract.Value)
	}
	stack.Push(v)
	return nil, nil
}

func opCalldataLoad(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	offset := x.Uint64()
	data := make([]byte, 32)
	if offset < uint64(len(contract.Input)) {
		copy(data, contract.Input[offset:])
	}
	x.SetBytes(data)
	return nil, nil
}

func opCalldataSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := uint256.NewInt(uint64(len(contract.Input)))
	stack.Push(v)
	return nil, nil
}

func opCalldataCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	memOffset, dataOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	data := sliceOrZero(contract.Input, dataOffset.Uint64(), l)
	memory.Set(memOffset.Uint64(), l, data)
	return nil, nil
}

func opCodeSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := uint256.NewInt(uint64(len(contract.Code)))
	stack.Push(v)
	return nil, nil
}

func opCodeCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	memOffset, codeOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	data := sliceOrZero(contract.Code, codeOffset.Uint64(), l)
	memory.Set(memOffset.Uint64(), l, data)
	return nil, nil
}

func opGasPrice(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := new(uint256.Int)
	if gp := evm.host.TxContext().GasPrice; gp != nil {
		v.Set(gp)
	}
	stack.Push(v)
	return nil, nil
}

func opExtcodesize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	slot := stack.Peek()
	addr := addressFromUint256(slot)
	slot.SetUint64(uint64(evm.host.GetCodeSize(addr)))
	return nil, nil
}

func opExtcodecopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	addrW, memOffset, codeOffset, length := stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop()
	addr := addressFromUint256(&addrW)
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	code := evm.host.GetCode(addr)
	data := sliceOrZero(code, codeOffset.Uint64(), l)
	memory.Set(memOffset.Uint64(), l, data)
	return nil, nil
}

func opExtcodehash(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	slot := stack.Peek()
	addr := addressFromUint256(slot)
	if !evm.host.Exist(addr) || evm.host.Empty(addr) {
		slot.Clear()
		return nil, nil
	}
	h := evm.host.GetCodeHash(addr)
	slot.Set(h.Uint256())
	return nil, nil
}

func opReturndataSize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := uint256.NewInt(uint64(len(evm.returnData)))
	stack.Push(v)
	return nil, nil
}

func opReturndataCopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	memOffset, dataOffset, length := stack.Pop(), stack.Pop(), stack.Pop()
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	dOff := dataOffset.Uint64()
	end := dOff + l
	if end < dOff || end > uint64(len(evm.returnData)) {
		return nil, ErrReturnDataOutOfBounds
	}
	data := make([]byte, l)
	copy(data, evm.returnData[dOff:end])
	memory.Set(memOffset.Uint64(), l, data)
	return nil, nil
}

// --- block context -----------------------------------------------------------

func opBlockhash(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	num := stack.Peek()
	bc := evm.host.BlockContext()
	if !num.IsUint64() || bc.GetHash == nil {
		num.Clear()
		return nil, nil
	}
	w := bc.GetHash(num.Uint64())
	num.Set(w.Uint256())
	return nil, nil
}

func opCoinbase(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := uint256FromAddress(evm.host.BlockContext().Coinbase)
	stack.Push(&v)
	return nil, nil
}

func opTimestamp(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewInt(evm.host.BlockContext().Time))
	return nil, nil
}

func opNumber(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewInt(evm.host.BlockContext().BlockNumber))
	return nil, nil
}

func opPrevRandao(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	w := evm.host.BlockContext().PrevRandao
	v := *w.Uint256()
	stack.Push(&v)
	return nil, nil
}

func opGasLimit(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewInt(evm.host.BlockContext().GasLimit))
	return nil, nil
}

func opChainID(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewInt(evm.host.BlockContext().ChainID))
	return nil, nil
}

func opSelfBalance(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(evm.host.GetBalance(contract.Address))
	return nil, nil
}

func opBaseFee(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	v := new(uint256.Int)
	if bf := evm.host.BlockContext().BaseFee; bf != nil {
		v.Set(bf)
	}
	stack.Push(v)
	return nil, nil
}

// opBlobHash and opBlobBaseFee are registered for completeness (EIP-4844 /
// EIP-7516 opcode slots exist in the pinned fork) but this executor never
// runs a blob-carrying transaction, so both are constant zero.
func opBlobHash(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Peek().Clear()
	return nil, nil
}

func opBlobBaseFee(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int))
	return nil, nil
}

// --- stack / memory / flow -----------------------------------------------

func opPop(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Pop()
	return nil, nil
}

func opMload(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset := stack.Peek()
	data := memory.Get(offset.Uint64(), 32)
	offset.SetBytes(data)
	return nil, nil
}

func opMstore(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, val := stack.Pop(), stack.Pop()
	memory.Set32(offset.Uint64(), &val)
	return nil, nil
}

func opMstore8(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, val := stack.Pop(), stack.Pop()
	memory.Set(offset.Uint64(), 1, []byte{byte(val.Uint64())})
	return nil, nil
}

func opMcopy(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	dst, src, length := stack.Pop(), stack.Pop(), stack.Pop()
	l := length.Uint64()
	if l == 0 {
		return nil, nil
	}
	data := make([]byte, l)
	copy(data, memory.Get(src.Uint64(), l))
	memory.Set(dst.Uint64(), l, data)
	return nil, nil
}

func opSload(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	loc := stack.Peek()
	key := wordFromUint256(loc)
	val := evm.host.GetState(contract.Address, key)
	loc.Set(val.Uint256())
	return nil, nil
}

func opSstore(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if evm.ReadOnly() {
		return nil, ErrWriteProtection
	}
	loc, val := stack.Pop(), stack.Pop()
	key := wordFromUint256(&loc)
	value := wordFromUint256(&val)
	evm.host.SetState(contract.Address, key, value)
	return nil, nil
}

func opTload(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	loc := stack.Peek()
	key := wordFromUint256(loc)
	val := evm.host.GetTransientState(contract.Address, key)
	loc.Set(val.Uint256())
	return nil, nil
}

func opTstore(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if evm.ReadOnly() {
		return nil, ErrWriteProtection
	}
	loc, val := stack.Pop(), stack.Pop()
	key := wordFromUint256(&loc)
	value := wordFromUint256(&val)
	evm.host.SetTransientState(contract.Address, key, value)
	return nil, nil
}

func opJump(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	pos := stack.Pop()
	if !contract.ValidJumpdest(&pos) {
		return nil, ErrInvalidJump
	}
	*pc = pos.Uint64() - 1 // the interpreter loop steps onto the JUMPDEST
	return nil, nil
}

func opJumpi(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	pos, cond := stack.Pop(), stack.Pop()
	if !cond.IsZero() {
		if !contract.ValidJumpdest(&pos) {
			return nil, ErrInvalidJump
		}
		*pc = pos.Uint64() - 1 // the interpreter loop steps onto the JUMPDEST
	}
	return nil, nil
}

func opJumpdest(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, nil
}

func opPc(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewInt(*pc))
	return nil, nil
}

func opMsize(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewInt(uint64(memory.Len())))
	return nil, nil
}

func opGasOp(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewInt(contract.Gas))
	return nil, nil
}

// --- push / dup / swap -----------------------------------------------------

func opPush0(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	stack.Push(new(uint256.Int))
	return nil, nil
}

// makePush returns an executionFunc pushing the size bytes following pc as
// a big-endian word, zero-padded past the end of code.
func makePush(size int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		start := *pc + 1
		data := sliceOrZero(contract.Code, start, uint64(size))
		v := new(uint256.Int)
		v.SetBytes(data)
		stack.Push(v)
		*pc += uint64(size)
		return nil, nil
	}
}

func makeDup(n int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		stack.Dup(n)
		return nil, nil
	}
}

func makeSwap(n int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		stack.Swap(n)
		return nil, nil
	}
}

// --- logs, halting, control ------------------------------------------------

func makeLog(n int) executionFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
		if evm.ReadOnly() {
			return nil, ErrWriteProtection
		}
		offset, size := stack.Pop(), stack.Pop()
		topics := make([]types.Word, n)
		for i := 0; i < n; i++ {
			t := stack.Pop()
			topics[i] = wordFromUint256(&t)
		}
		data := memory.Get(offset.Uint64(), size.Uint64())
		evm.host.AddLog(types.Log{Address: contract.Address, Topics: topics, Data: data})
		return nil, nil
	}
}

func opStop(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, nil
}

func opReturn(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Pop()
	ret := memory.Get(offset.Uint64(), size.Uint64())
	return ret, nil
}

func opRevert(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Pop()
	ret := memory.Get(offset.Uint64(), size.Uint64())
	return ret, ErrExecutionReverted
}

func opInvalid(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return nil, ErrInvalidOpCode
}

// --- call family and create -------------------------------------------------

func opCall(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return doCall(CallTypeCall, evm, contract, memory, stack)
}

func opCallCode(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return doCall(CallTypeCallCode, evm, contract, memory, stack)
}

func opDelegateCall(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return doCall(CallTypeDelegateCall, evm, contract, memory, stack)
}

func opStaticCall(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return doCall(CallTypeStaticCall, evm, contract, memory, stack)
}

func doCall(kind CallType, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	gasVal := stack.Pop()
	addrW := stack.Pop()
	addr := addressFromUint256(&addrW)

	var value uint256.Int
	if kind == CallTypeCall || kind == CallTypeCallCode {
		value = stack.Pop()
	}

	inOffset, inSize := stack.Pop(), stack.Pop()
	retOffset, retSize := stack.Pop(), stack.Pop()

	if kind == CallTypeCall && evm.ReadOnly() && !value.IsZero() {
		return nil, ErrWriteProtection
	}

	args := memory.Get(inOffset.Uint64(), inSize.Uint64())

	callGas := capCallGas(gasVal.Uint64(), contract.Gas)
	contract.Gas -= callGas
	if !value.IsZero() {
		callGas += GasCallStipend
	}

	caller := contract.Address
	if kind == CallTypeDelegateCall {
		caller = contract.CallerAddress
	}

	ret, gasLeft, err := evm.host.Call(kind, caller, addr, args, callGas, &value)
	contract.RefundGas(gasLeft)
	evm.returnData = ret

	if retSize.Uint64() > 0 && len(ret) > 0 {
		retLen := retSize.Uint64()
		if uint64(len(ret)) < retLen {
			retLen = uint64(len(ret))
		}
		memory.Set(retOffset.Uint64(), retLen, ret[:retLen])
	}

	result := new(uint256.Int)
	if err == nil {
		result.SetOne()
	}
	stack.Push(result)
	return nil, nil
}

// capCallGas implements the EIP-150 63/64ths rule: a CALL may forward at
// most gas - gas/64 of the caller's remaining budget, regardless of what
// it asks for.
func capCallGas(requested, available uint64) uint64 {
	capped := available - available/64
	if requested < capped {
		return requested
	}
	return capped
}

func opCreate(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return doCreate(false, evm, contract, memory, stack)
}

func opCreate2(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	return doCreate(true, evm, contract, memory, stack)
}

func doCreate(create2 bool, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if evm.ReadOnly() {
		return nil, ErrWriteProtection
	}
	value := stack.Pop()
	offset, size := stack.Pop(), stack.Pop()
	var salt uint256.Int
	if create2 {
		salt = stack.Pop()
	}
	code := memory.Get(offset.Uint64(), size.Uint64())
	if uint64(len(code)) > MaxInitCodeSize {
		stack.Push(new(uint256.Int))
		return nil, nil
	}

	gas := capCallGas(contract.Gas, contract.Gas)
	contract.Gas -= gas

	ret, addr, gasLeft, err := evm.host.Create(contract.Address, code, gas, &value, &salt, create2)
	contract.RefundGas(gasLeft)
	evm.returnData = ret

	result := new(uint256.Int)
	if err == nil {
		*result = uint256FromAddress(addr)
	}
	stack.Push(result)
	return nil, nil
}

func opSelfdestruct(pc *uint64, evm *EVM, contract *Contract, memory *Memory, stack *Stack) ([]byte, error) {
	if evm.ReadOnly() {
		return nil, ErrWriteProtection
	}
	beneficiaryW := stack.Pop()
	beneficiary := addressFromUint256(&beneficiaryW)
	balance := evm.host.GetBalance(contract.Address)
	if !balance.IsZero() {
		evm.host.AddBalance(beneficiary, balance)
	}
	evm.host.Selfdestruct(contract.Address, beneficiary)
	return nil, nil
}

// --- small helpers -----------------------------------------------------------

// sliceOrZero returns length bytes of src starting at offset, zero-padding
// past the end rather than panicking (calldata/code reads never fail in
// the EVM).
func sliceOrZero(src []byte, offset, length uint64) []byte {
	out := make([]byte, length)
	if offset >= uint64(len(src)) {
		return out
	}
	end := offset + length
	if end > uint64(len(src)) {
		end = uint64(len(src))
	}
	copy(out, src[offset:end])
	return out
}
