package vm

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/state"
	"github.com/sbip-sg/tevm/types"
)

func newTestEVM(t *testing.T) (*EVM, *state.StateDB) {
	t.Helper()
	sdb := state.New()
	evm := NewEVM(sdb, BlockContext{GasLimit: 30_000_000}, TxContext{}, Config{})
	return evm, sdb
}

// runReturn42 is PUSH1 42 PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN.
var runReturn42 = []byte{
	0x60, 42,
	0x60, 0,
	0x52,
	0x60, 32,
	0x60, 0,
	0xf3,
}

// initReturn42 is init code that deploys runReturn42 as the runtime:
// PUSH1 10 PUSH1 12 PUSH1 0 CODECOPY PUSH1 10 PUSH1 0 RETURN, followed by
// the 10 runtime bytes it copies.
var initReturn42 = append([]byte{
	0x60, 10, 0x60, 12, 0x60, 0, 0x39,
	0x60, 10, 0x60, 0, 0xf3,
}, runReturn42...)

func TestRunSimpleReturn(t *testing.T) {
	evm, _ := newTestEVM(t)
	contract := NewContract(types.Address{}, types.Address{}, new(uint256.Int), 100_000)
	contract.Code = runReturn42

	ret, err := evm.Run(contract, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := new(uint256.Int).SetBytes(ret)
	if got.Uint64() != 42 {
		t.Errorf("expected 42, got %d", got.Uint64())
	}
}

func TestRunStackUnderflow(t *testing.T) {
	evm, _ := newTestEVM(t)
	contract := NewContract(types.Address{}, types.Address{}, new(uint256.Int), 100_000)
	contract.Code = []byte{byte(ADD)} // ADD with empty stack

	_, err := evm.Run(contract, nil)
	if err != ErrStackUnderflow {
		t.Fatalf("expected ErrStackUnderflow, got %v", err)
	}
}

func TestRunOutOfGas(t *testing.T) {
	evm, _ := newTestEVM(t)
	contract := NewContract(types.Address{}, types.Address{}, new(uint256.Int), 1) // 1 gas
	contract.Code = runReturn42

	_, err := evm.Run(contract, nil)
	if err != ErrOutOfGas {
		t.Fatalf("expected ErrOutOfGas, got %v", err)
	}
}

func TestCreateAndCallRoundTrip(t *testing.T) {
	evm, sdb := newTestEVM(t)
	owner := types.HexToAddress("0x01")
	sdb.SetBalance(owner, uint256.NewInt(1_000_000))

	ret, contractAddr, gasLeft, err := evm.Create(owner, initReturn42, 200_000, new(uint256.Int), nil, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(ret) != len(runReturn42) {
		t.Fatalf("expected the %d-byte runtime as deployed code, got %d bytes", len(runReturn42), len(ret))
	}
	if gasLeft == 0 {
		t.Fatalf("expected leftover gas after cheap deployment")
	}
	if len(sdb.GetCode(contractAddr)) == 0 {
		t.Fatalf("expected deployed code at %s", contractAddr.Hex())
	}

	out, _, err := evm.Call(CallTypeCall, owner, contractAddr, nil, 100_000, new(uint256.Int))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	got := new(uint256.Int).SetBytes(out)
	if got.Uint64() != 42 {
		t.Errorf("expected call to return 42, got %d", got.Uint64())
	}
}

func TestCreateAtPlacesCodeWithoutDerivation(t *testing.T) {
	evm, sdb := newTestEVM(t)
	owner := types.HexToAddress("0x02")
	target := types.HexToAddress("0xdeadbeef")
	sdb.SetBalance(owner, uint256.NewInt(1_000_000))

	_, gasLeft, err := evm.CreateAt(owner, target, runReturn42, 200_000, new(uint256.Int))
	if err != nil {
		t.Fatalf("create at: %v", err)
	}
	if gasLeft == 0 {
		t.Fatalf("expected leftover gas")
	}
	if len(sdb.GetCode(target)) == 0 {
		t.Fatalf("expected code stored exactly at target address")
	}
}

// initCodeEIP3541 is init code that executes to a 1-byte deployed body
// starting with 0xEF: PUSH1 0xEF PUSH1 0 MSTORE8 PUSH1 1 PUSH1 0 RETURN.
var initCodeEIP3541 = []byte{
	0x60, 0xEF,
	0x60, 0x00,
	0x53,
	0x60, 0x01,
	0x60, 0x00,
	0xf3,
}

func TestCreateRejectsEIP3541Code(t *testing.T) {
	evm, sdb := newTestEVM(t)
	owner := types.HexToAddress("0x10")
	sdb.SetBalance(owner, uint256.NewInt(1_000_000))

	_, addr, _, err := evm.Create(owner, initCodeEIP3541, 200_000, new(uint256.Int), nil, false)
	if err != ErrInvalidCode {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if len(sdb.GetCode(addr)) != 0 {
		t.Errorf("expected no code stored after a rejected EIP-3541 deployment")
	}
}

func TestCreateAtRejectsEIP3541Code(t *testing.T) {
	evm, sdb := newTestEVM(t)
	owner := types.HexToAddress("0x11")
	target := types.HexToAddress("0x2000")
	sdb.SetBalance(owner, uint256.NewInt(1_000_000))

	_, _, err := evm.CreateAt(owner, target, initCodeEIP3541, 200_000, new(uint256.Int))
	if err != ErrInvalidCode {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if len(sdb.GetCode(target)) != 0 {
		t.Errorf("expected no code stored at target after a rejected EIP-3541 deployment")
	}
}

func TestStaticCallRejectsWrite(t *testing.T) {
	// PUSH1 1 PUSH1 0 SSTORE: attempts a write under STATICCALL.
	code := []byte{0x60, 1, 0x60, 0, 0x55}

	owner := types.HexToAddress("0x03")
	target := types.HexToAddress("0x1000")
	evm, sdb := newTestEVM(t)
	sdb.SetCode(target, code)
	_, _, err := evm.Call(CallTypeStaticCall, owner, target, nil, 100_000, nil)
	if err == nil {
		t.Fatalf("expected an error from a state-mutating opcode under STATICCALL")
	}
}
