package vm

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

// BlockContext carries block-level values opcodes read (COINBASE, TIMESTAMP,
// NUMBER, ...). It is immutable for the lifetime of one Call.
type BlockContext struct {
	Coinbase    types.Address
	GasLimit    uint64
	BlockNumber uint64
	Time        uint64
	PrevRandao  types.Word
	BaseFee     *uint256.Int
	BlobBaseFee *uint256.Int
	ChainID     uint64

	// GetHash resolves BLOCKHASH for one of the 256 most recent blocks; it
	// returns the zero word for anything older (matching mainnet semantics).
	GetHash func(blockNumber uint64) types.Word
}

// TxContext carries the values that stay constant across every call frame
// of one top-level transaction (ORIGIN, GASPRICE, ...).
type TxContext struct {
	Origin   types.Address
	GasPrice *uint256.Int
}

// Host is the capability interface the interpreter executes against. It
// decouples opcode handlers from any concrete state-database
// implementation: a capability interface rather than a base class, so the
// interpreter never reaches past Host into journal or provider internals.
// The concrete implementation is *EVM, which bundles a journaled StateDB
// with a forked-state reader.
type Host interface {
	GetBalance(addr types.Address) *uint256.Int
	AddBalance(addr types.Address, amount *uint256.Int)
	SubBalance(addr types.Address, amount *uint256.Int)

	GetCode(addr types.Address) []byte
	GetCodeHash(addr types.Address) types.Word
	GetCodeSize(addr types.Address) int

	GetState(addr types.Address, key types.Word) types.Word
	SetState(addr types.Address, key, value types.Word)

	GetTransientState(addr types.Address, key types.Word) types.Word
	SetTransientState(addr types.Address, key, value types.Word)

	Exist(addr types.Address) bool
	Empty(addr types.Address) bool
	CreateAccount(addr types.Address)

	Selfdestruct(addr, beneficiary types.Address)
	HasSelfDestructed(addr types.Address) bool

	AddressInAccessList(addr types.Address) bool
	SlotInAccessList(addr types.Address, slot types.Word) (addrWarm, slotWarm bool)
	AddAddressToAccessList(addr types.Address)
	AddSlotToAccessList(addr types.Address, slot types.Word)

	AddLog(l types.Log)
	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	BlockContext() BlockContext
	TxContext() TxContext

	// Call dispatches a CALL/CALLCODE/DELEGATECALL/STATICCALL sub-frame;
	// callType distinguishes them since Host has no dependency on the
	// opcode set itself.
	Call(callType CallType, caller, addr types.Address, input []byte, gas uint64, value *uint256.Int) (ret []byte, gasLeft uint64, err error)
	Create(caller types.Address, code []byte, gas uint64, value *uint256.Int, salt *uint256.Int, create2 bool) (ret []byte, addr types.Address, gasLeft uint64, err error)

	Depth() int
	ReadOnly() bool
}

// CallType distinguishes the four call-family opcodes for Host.Call, since
// each has distinct value-transfer and storage-context semantics.
type CallType int

const (
	CallTypeCall CallType = iota
	CallTypeCallCode
	CallTypeDelegateCall
	CallTypeStaticCall
)
