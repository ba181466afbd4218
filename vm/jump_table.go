package vm

import (
	"math"

	"github.com/holiman/uint256"
)

// dynamicGasFunc computes the dynamic (stack/memory-dependent) gas
// component of an operation, on top of its constantGas.
type dynamicGasFunc func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error)

// memorySizeFunc returns the number of bytes of memory an operation needs,
// read off the stack before it executes (so expansion gas is charged
// before the handler runs).
type memorySizeFunc func(stack *Stack) uint64

// operation is one opcode's execution metadata: its handler, gas
// accounting, and stack bounds. halts/writes let the interpreter and
// tracer reason about control flow without switching on the opcode value.
type operation struct {
	execute     executionFunc
	constantGas uint64
	dynamicGas  dynamicGasFunc
	minStack    int
	maxStack    int
	memorySize  memorySizeFunc
	halts       bool
	writes      bool
}

// JumpTable maps every opcode byte to its operation, nil for undefined
// opcodes. Only one table is built: the pinned hard fork's, no per-fork
// branching (unlike the multi-fork history this was distilled from).
type JumpTable [256]*operation

// memEnd adds a stack-supplied offset and size, saturating to MaxUint64 on
// overflow so the caller's bounds/gas check rejects it rather than wrapping
// into a tiny, wrong memory size.
func memEnd(offset, size *uint256.Int) uint64 {
	if size.IsZero() {
		return 0
	}
	end, overflow := new(uint256.Int).AddOverflow(offset, size)
	if overflow || !end.IsUint64() {
		return math.MaxUint64
	}
	return end.Uint64()
}

func memTwoArgs(offsetPos int) memorySizeFunc {
	return func(stack *Stack) uint64 {
		return memEnd(stack.Back(offsetPos), stack.Back(offsetPos+1))
	}
}

// memCopy returns the required memory size for the *COPY family, whose
// destination offset sits at destPos and length at destPos+2, with the
// source offset between them.
func memCopy(destPos int) memorySizeFunc {
	return func(stack *Stack) uint64 {
		return memEnd(stack.Back(destPos), stack.Back(destPos+2))
	}
}

// memCall returns the required memory size for CALL/CALLCODE (hasValue) or
// DELEGATECALL/STATICCALL (!hasValue). Stack layout, top to bottom:
// gas, addr, [value,] argsOffset, argsLength, retOffset, retLength.
func memCall(hasValue bool) memorySizeFunc {
	argsPos := 2
	if hasValue {
		argsPos = 3
	}
	return func(stack *Stack) uint64 {
		argsEnd := memEnd(stack.Back(argsPos), stack.Back(argsPos+1))
		retEnd := memEnd(stack.Back(argsPos+2), stack.Back(argsPos+3))
		if argsEnd > retEnd {
			return argsEnd
		}
		return retEnd
	}
}

func memCreate(stack *Stack) uint64 {
	return memEnd(stack.Back(1), stack.Back(2))
}

// gasMemExpansion charges the Yellow Paper quadratic memory-expansion cost
// for growing to memorySize bytes.
func gasMemExpansion(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return mem.ExpansionCost(memorySize)
}

func gasMemExpansionAnd(extra dynamicGasFunc) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		base, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
		if err != nil {
			return 0, err
		}
		more, err := extra(evm, contract, stack, mem, memorySize)
		if err != nil {
			return 0, err
		}
		return base + more, nil
	}
}

func gasSload(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := contract.Address
	key := wordFromUint256(stack.Peek())
	_, slotWarm := evm.host.SlotInAccessList(addr, key)
	if slotWarm {
		return GasSloadWarm, nil
	}
	evm.host.AddSlotToAccessList(addr, key)
	return GasSloadCold, nil
}

func gasSstore(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	key := wordFromUint256(stack.Back(0))
	addr := contract.Address
	_, slotWarm := evm.host.SlotInAccessList(addr, key)
	cost := uint64(0)
	if !slotWarm {
		evm.host.AddSlotToAccessList(addr, key)
		cost += GasSloadCold
	}
	current := evm.host.GetState(addr, key)
	newVal := wordFromUint256(stack.Back(1))
	if current.Eq(newVal) {
		return cost + GasSloadWarm, nil
	}
	if current.IsZero() {
		return cost + GasSstoreSet, nil
	}
	if newVal.IsZero() {
		evm.host.AddRefund(GasSstoreClearRefund)
	}
	return cost + GasSstoreReset, nil
}

func gasExtcode(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := addressFromUint256(stack.Peek())
	if evm.host.AddressInAccessList(addr) {
		return GasBalanceWarm, nil
	}
	evm.host.AddAddressToAccessList(addr)
	return GasBalanceCold, nil
}

func gasBalance(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return gasExtcode(evm, contract, stack, mem, memorySize)
}

func gasCall(hasValue bool) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		memCost, err := mem.ExpansionCost(memorySize)
		if err != nil {
			return 0, err
		}
		addr := addressFromUint256(stack.Back(1))
		cost := memCost
		if evm.host.AddressInAccessList(addr) {
			cost += GasCallWarm
		} else {
			evm.host.AddAddressToAccessList(addr)
			cost += GasCallCold
		}
		if hasValue {
			value := stack.Back(2)
			if !value.IsZero() {
				cost += GasCallValueTransfer
				if evm.host.Empty(addr) {
					cost += GasCallNewAccount
				}
			}
		}
		return cost, nil
	}
}

// newMainJumpTable builds the single pinned hard fork's opcode table:
// Cancun-equivalent semantics (PUSH0, TLOAD/TSTORE, MCOPY, EIP-2929
// warm/cold accounting, EIP-1153 transient storage) with no multi-fork
// branch history.
func newMainJumpTable() *JumpTable {
	tbl := &JumpTable{}

	tbl[STOP] = &operation{execute: opStop, minStack: 0, maxStack: 1024, halts: true}
	tbl[ADD] = &operation{execute: opAdd, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[MUL] = &operation{execute: opMul, constantGas: GasLow, minStack: 2, maxStack: 1024}
	tbl[SUB] = &operation{execute: opSub, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[DIV] = &operation{execute: opDiv, constantGas: GasLow, minStack: 2, maxStack: 1024}
	tbl[SDIV] = &operation{execute: opSdiv, constantGas: GasLow, minStack: 2, maxStack: 1024}
	tbl[MOD] = &operation{execute: opMod, constantGas: GasLow, minStack: 2, maxStack: 1024}
	tbl[SMOD] = &operation{execute: opSmod, constantGas: GasLow, minStack: 2, maxStack: 1024}
	tbl[ADDMOD] = &operation{execute: opAddmod, constantGas: GasMid, minStack: 3, maxStack: 1024}
	tbl[MULMOD] = &operation{execute: opMulmod, constantGas: GasMid, minStack: 3, maxStack: 1024}
	tbl[EXP] = &operation{execute: opExp, constantGas: GasHigh, dynamicGas: gasExp, minStack: 2, maxStack: 1024}
	tbl[SIGNEXTEND] = &operation{execute: opSignExtend, constantGas: GasLow, minStack: 2, maxStack: 1024}

	tbl[LT] = &operation{execute: opLt, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[GT] = &operation{execute: opGt, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[SLT] = &operation{execute: opSlt, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[SGT] = &operation{execute: opSgt, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[EQ] = &operation{execute: opEq, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[ISZERO] = &operation{execute: opIsZero, constantGas: GasVerylow, minStack: 1, maxStack: 1024}
	tbl[AND] = &operation{execute: opAnd, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[OR] = &operation{execute: opOr, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[XOR] = &operation{execute: opXor, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[NOT] = &operation{execute: opNot, constantGas: GasVerylow, minStack: 1, maxStack: 1024}
	tbl[BYTE] = &operation{execute: opByte, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[SHL] = &operation{execute: opSHL, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[SHR] = &operation{execute: opSHR, constantGas: GasVerylow, minStack: 2, maxStack: 1024}
	tbl[SAR] = &operation{execute: opSAR, constantGas: GasVerylow, minStack: 2, maxStack: 1024}

	tbl[KECCAK256] = &operation{execute: opKeccak256, constantGas: GasKeccak256, dynamicGas: gasMemExpansionAnd(gasKeccak256Words), memorySize: memTwoArgs(0), minStack: 2, maxStack: 1024}

	tbl[ADDRESS] = &operation{execute: opAddress, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[BALANCE] = &operation{execute: opBalance, dynamicGas: gasBalance, minStack: 1, maxStack: 1024}
	tbl[ORIGIN] = &operation{execute: opOrigin, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[CALLER] = &operation{execute: opCaller, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[CALLVALUE] = &operation{execute: opCallValue, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[CALLDATALOAD] = &operation{execute: opCalldataLoad, constantGas: GasVerylow, minStack: 1, maxStack: 1024}
	tbl[CALLDATASIZE] = &operation{execute: opCalldataSize, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[CALLDATACOPY] = &operation{execute: opCalldataCopy, constantGas: GasVerylow, dynamicGas: gasMemExpansionAnd(gasCopyWords(2)), memorySize: memCopy(0), minStack: 3, maxStack: 1024}
	tbl[CODESIZE] = &operation{execute: opCodeSize, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[CODECOPY] = &operation{execute: opCodeCopy, constantGas: GasVerylow, dynamicGas: gasMemExpansionAnd(gasCopyWords(2)), memorySize: memCopy(0), minStack: 3, maxStack: 1024}
	tbl[GASPRICE] = &operation{execute: opGasPrice, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[EXTCODESIZE] = &operation{execute: opExtcodesize, dynamicGas: gasExtcode, minStack: 1, maxStack: 1024}
	tbl[EXTCODECOPY] = &operation{execute: opExtcodecopy, dynamicGas: gasMemExpansionAnd(gasExtcodeCopyWords), memorySize: memCopy(1), minStack: 4, maxStack: 1024}
	tbl[RETURNDATASIZE] = &operation{execute: opReturndataSize, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[RETURNDATACOPY] = &operation{execute: opReturndataCopy, constantGas: GasVerylow, dynamicGas: gasMemExpansionAnd(gasCopyWords(2)), memorySize: memCopy(0), minStack: 3, maxStack: 1024}
	tbl[EXTCODEHASH] = &operation{execute: opExtcodehash, dynamicGas: gasExtcode, minStack: 1, maxStack: 1024}

	tbl[BLOCKHASH] = &operation{execute: opBlockhash, constantGas: GasExt, minStack: 1, maxStack: 1024}
	tbl[COINBASE] = &operation{execute: opCoinbase, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[TIMESTAMP] = &operation{execute: opTimestamp, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[NUMBER] = &operation{execute: opNumber, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[PREVRANDAO] = &operation{execute: opPrevRandao, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[GASLIMIT] = &operation{execute: opGasLimit, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[CHAINID] = &operation{execute: opChainID, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[SELFBALANCE] = &operation{execute: opSelfBalance, constantGas: GasLow, minStack: 0, maxStack: 1023}
	tbl[BASEFEE] = &operation{execute: opBaseFee, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[BLOBHASH] = &operation{execute: opBlobHash, constantGas: GasVerylow, minStack: 1, maxStack: 1024}
	tbl[BLOBBASEFEE] = &operation{execute: opBlobBaseFee, constantGas: GasBase, minStack: 0, maxStack: 1023}

	tbl[POP] = &operation{execute: opPop, constantGas: GasPop, minStack: 1, maxStack: 1024}
	tbl[MLOAD] = &operation{execute: opMload, constantGas: GasVerylow, dynamicGas: gasMemExpansion, memorySize: memTwoArgsFixed(0, 32), minStack: 1, maxStack: 1024}
	tbl[MSTORE] = &operation{execute: opMstore, constantGas: GasVerylow, dynamicGas: gasMemExpansion, memorySize: memTwoArgsFixed(0, 32), minStack: 2, maxStack: 1024}
	tbl[MSTORE8] = &operation{execute: opMstore8, constantGas: GasVerylow, dynamicGas: gasMemExpansion, memorySize: memTwoArgsFixed(0, 1), minStack: 2, maxStack: 1024}
	tbl[SLOAD] = &operation{execute: opSload, dynamicGas: gasSload, minStack: 1, maxStack: 1024}
	tbl[SSTORE] = &operation{execute: opSstore, dynamicGas: gasSstore, minStack: 2, maxStack: 1024, writes: true}
	tbl[JUMP] = &operation{execute: opJump, constantGas: GasMid, minStack: 1, maxStack: 1024}
	tbl[JUMPI] = &operation{execute: opJumpi, constantGas: GasHigh, minStack: 2, maxStack: 1024}
	tbl[PC] = &operation{execute: opPc, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[MSIZE] = &operation{execute: opMsize, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[GAS] = &operation{execute: opGasOp, constantGas: GasBase, minStack: 0, maxStack: 1023}
	tbl[JUMPDEST] = &operation{execute: opJumpdest, constantGas: GasJumpDest, minStack: 0, maxStack: 1024}
	tbl[TLOAD] = &operation{execute: opTload, constantGas: GasTload, minStack: 1, maxStack: 1024}
	tbl[TSTORE] = &operation{execute: opTstore, constantGas: GasTstore, minStack: 2, maxStack: 1024, writes: true}
	tbl[MCOPY] = &operation{execute: opMcopy, constantGas: GasMcopyBase, dynamicGas: gasMemExpansionAnd(gasCopyWords(2)), memorySize: memMcopy, minStack: 3, maxStack: 1024}

	tbl[PUSH0] = &operation{execute: opPush0, constantGas: GasPush0, minStack: 0, maxStack: 1023}
	tbl[PUSH1] = &operation{execute: makePush(1), constantGas: GasPush, minStack: 0, maxStack: 1023}
	for i := 2; i <= 32; i++ {
		tbl[PUSH1+OpCode(i-1)] = &operation{execute: makePush(i), constantGas: GasPush, minStack: 0, maxStack: 1023}
	}
	for i := 1; i <= 16; i++ {
		tbl[DUP1+OpCode(i-1)] = &operation{execute: makeDup(i), constantGas: GasDup, minStack: i, maxStack: 1023}
	}
	for i := 1; i <= 16; i++ {
		tbl[SWAP1+OpCode(i-1)] = &operation{execute: makeSwap(i), constantGas: GasSwap, minStack: i + 1, maxStack: 1024}
	}
	for i := 0; i <= 4; i++ {
		n := i
		tbl[LOG0+OpCode(i)] = &operation{
			execute:     makeLog(n),
			constantGas: GasLog,
			dynamicGas:  gasMemExpansionAnd(gasLogData(n)),
			memorySize:  memTwoArgs(0),
			minStack:    2 + n,
			maxStack:    1024,
			writes:      true,
		}
	}

	tbl[CREATE] = &operation{execute: opCreate, constantGas: GasCreate, dynamicGas: gasMemExpansion, memorySize: memCreate, minStack: 3, maxStack: 1024, writes: true}
	tbl[CALL] = &operation{execute: opCall, dynamicGas: gasCall(true), memorySize: memCall(true), minStack: 7, maxStack: 1024}
	tbl[CALLCODE] = &operation{execute: opCallCode, dynamicGas: gasCall(true), memorySize: memCall(true), minStack: 7, maxStack: 1024}
	tbl[RETURN] = &operation{execute: opReturn, dynamicGas: gasMemExpansion, memorySize: memTwoArgs(0), minStack: 2, maxStack: 1024, halts: true}
	tbl[DELEGATECALL] = &operation{execute: opDelegateCall, dynamicGas: gasCall(false), memorySize: memCall(false), minStack: 6, maxStack: 1024}
	tbl[CREATE2] = &operation{execute: opCreate2, constantGas: GasCreate, dynamicGas: gasMemExpansionAnd(gasKeccak256Words), memorySize: memCreate, minStack: 4, maxStack: 1024, writes: true}
	tbl[STATICCALL] = &operation{execute: opStaticCall, dynamicGas: gasCall(false), memorySize: memCall(false), minStack: 6, maxStack: 1024}
	tbl[REVERT] = &operation{execute: opRevert, dynamicGas: gasMemExpansion, memorySize: memTwoArgs(0), minStack: 2, maxStack: 1024, halts: true}
	tbl[INVALID] = &operation{execute: opInvalid, minStack: 0, maxStack: 1024}
	tbl[SELFDESTRUCT] = &operation{execute: opSelfdestruct, constantGas: GasSelfdestruct, dynamicGas: gasSelfdestruct, minStack: 1, maxStack: 1024, halts: true, writes: true}

	return tbl
}

func memTwoArgsFixed(offsetPos int, size uint64) memorySizeFunc {
	return func(stack *Stack) uint64 {
		offset := stack.Back(offsetPos)
		sz := uint256.NewInt(size)
		return memEnd(offset, sz)
	}
}

func memMcopy(stack *Stack) uint64 {
	dst, src, size := stack.Back(0), stack.Back(1), stack.Back(2)
	dstEnd := memEnd(dst, size)
	srcEnd := memEnd(src, size)
	if dstEnd > srcEnd {
		return dstEnd
	}
	return srcEnd
}

// gasExp charges 50 gas (EIP-160) per byte of the exponent's byte length,
// ceil(bitlen/8), on top of EXP's constant cost.
func gasExp(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	exponent := stack.Back(1)
	bits := exponent.BitLen()
	if bits == 0 {
		return 0, nil
	}
	const gasExpByte = 50
	bytes := uint64((bits + 7) / 8)
	return bytes * gasExpByte, nil
}

func wordCountFromSize(size uint64) uint64 { return (size + 31) / 32 }

func gasKeccak256Words(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(1).Uint64()
	return wordCountFromSize(size) * GasKeccak256Word, nil
}

// gasCopyWords charges GasCopy per word copied, reading the copy length
// from stack position sizePos (0-indexed from the top).
func gasCopyWords(sizePos int) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size := stack.Back(sizePos).Uint64()
		return wordCountFromSize(size) * GasCopy, nil
	}
}

func gasExtcodeCopyWords(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(3).Uint64()
	return wordCountFromSize(size) * GasCopy, nil
}

func gasLogData(topics int) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size := stack.Back(1).Uint64()
		return uint64(topics)*GasLogTopic + size*GasLogData, nil
	}
}

// gasSelfdestruct charges a cold-access surcharge for a not-yet-warm
// beneficiary, plus a new-account surcharge if the beneficiary is empty
// and the contract carries a nonzero balance to sweep into it.
func gasSelfdestruct(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	beneficiary := addressFromUint256(stack.Peek())
	var cost uint64
	if !evm.host.AddressInAccessList(beneficiary) {
		evm.host.AddAddressToAccessList(beneficiary)
		cost += GasCallCold
	}
	if evm.host.Empty(beneficiary) && !evm.host.GetBalance(contract.Address).IsZero() {
		cost += GasCallNewAccount
	}
	return cost, nil
}
