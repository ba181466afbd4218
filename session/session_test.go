package session

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
	"github.com/sbip-sg/tevm/vm"
)

// returnsFortyTwo is PUSH1 42 PUSH1 0 MSTORE PUSH1 32 PUSH1 0 RETURN: run
// as a body it returns the word 42; run as init code it deploys that
// 32-byte word itself as the contract's code.
var returnsFortyTwo = []byte{
	0x60, 42, // PUSH1 42
	0x60, 0, // PUSH1 0
	0x52, // MSTORE
	0x60, 32, // PUSH1 32
	0x60, 0, // PUSH1 0
	0xf3, // RETURN
}

// deploysFortyTwo is init code that deploys returnsFortyTwo as the runtime
// body: it copies the 10 bytes that follow its own 12-byte prefix into
// memory and returns them.
var deploysFortyTwo = append([]byte{
	0x60, 10, // PUSH1 10 (length)
	0x60, 12, // PUSH1 12 (code offset)
	0x60, 0, // PUSH1 0 (memory offset)
	0x39, // CODECOPY
	0x60, 10, // PUSH1 10
	0x60, 0, // PUSH1 0
	0xf3, // RETURN
}, returnsFortyTwo...)

func TestDeployAndCall(t *testing.T) {
	s := New(DefaultConfig())

	owner := types.HexToAddress("0x0000000000000000000000000000000000000001")
	s.SetBalance(owner, uint256.NewInt(1_000_000_000))

	res, err := s.Deploy(DeployArgs{Owner: owner, Code: deploysFortyTwo})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !res.Success {
		t.Fatalf("deploy did not succeed: err=%v", res.Err)
	}
	if len(s.GetCode(res.Address)) == 0 {
		t.Fatalf("no code stored at deployed address %s", res.Address.Hex())
	}

	call, err := s.Call(CallArgs{From: owner, To: res.Address})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !call.Success {
		t.Fatalf("call did not succeed: err=%v", call.Err)
	}
	got := new(uint256.Int).SetBytes(call.ReturnData)
	if got.Uint64() != 42 {
		t.Errorf("expected return value 42, got %d", got.Uint64())
	}
}

func TestDeployEIP3607RejectsContractSender(t *testing.T) {
	s := New(DefaultConfig())

	owner := types.HexToAddress("0x0000000000000000000000000000000000000002")
	s.SetBalance(owner, uint256.NewInt(1_000_000_000))

	res, err := s.Deploy(DeployArgs{Owner: owner, Code: returnsFortyTwo})
	if err != nil || !res.Success {
		t.Fatalf("setup deploy failed: %v %v", err, res.Err)
	}

	// Using the freshly deployed contract as a sender must be rejected.
	_, err = s.Deploy(DeployArgs{Owner: res.Address, Code: returnsFortyTwo})
	if err != ErrSenderHasCode {
		t.Fatalf("expected ErrSenderHasCode, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.DisableEIP3607 = true
	s2 := New(cfg)
	s2.SetBalance(owner, uint256.NewInt(1_000_000_000))
	deployed, err := s2.Deploy(DeployArgs{Owner: owner, Code: returnsFortyTwo})
	if err != nil || !deployed.Success {
		t.Fatalf("setup deploy on s2 failed: %v %v", err, deployed.Err)
	}
	// disabling the check must let a contract address act as sender.
	if _, err := s2.Deploy(DeployArgs{Owner: deployed.Address, Code: returnsFortyTwo}); err != nil {
		t.Fatalf("deploy with EIP-3607 disabled should succeed: %v", err)
	}
}

func TestDeployAtTargetAddress(t *testing.T) {
	s := New(DefaultConfig())

	owner := types.HexToAddress("0x0000000000000000000000000000000000000003")
	target := types.HexToAddress("0x00000000000000000000000000000000009999")
	s.SetBalance(owner, uint256.NewInt(1_000_000_000))

	res, err := s.Deploy(DeployArgs{Owner: owner, Code: returnsFortyTwo, TargetAddress: target})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if res.Address != target {
		t.Fatalf("expected deployment at %s, got %s", target.Hex(), res.Address.Hex())
	}
	if !res.Success {
		t.Fatalf("deterministic deploy did not succeed: %v", res.Err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New(DefaultConfig())

	addr := types.HexToAddress("0x0000000000000000000000000000000000000004")
	s.SetBalance(addr, uint256.NewInt(100))

	id, err := s.TakeSnapshot()
	if err != nil {
		t.Fatalf("take snapshot: %v", err)
	}

	s.SetBalance(addr, uint256.NewInt(999))
	if s.GetBalance(addr).Uint64() != 999 {
		t.Fatalf("balance not updated before restore")
	}

	if err := s.RestoreSnapshot(id); err != nil {
		t.Fatalf("restore snapshot: %v", err)
	}
	if got := s.GetBalance(addr).Uint64(); got != 100 {
		t.Errorf("expected balance 100 after restore, got %d", got)
	}

	// Without KeepSnapshotAfterRestore, the id is consumed.
	if err := s.RestoreSnapshot(id); err != ErrUnknownSnapshot {
		t.Errorf("expected ErrUnknownSnapshot on reuse, got %v", err)
	}
}

func TestSnapshotKeepAfterRestore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepSnapshotAfterRestore = true
	s := New(cfg)

	addr := types.HexToAddress("0x0000000000000000000000000000000000000005")
	s.SetBalance(addr, uint256.NewInt(7))
	id, err := s.TakeSnapshot()
	if err != nil {
		t.Fatalf("take snapshot: %v", err)
	}

	s.SetBalance(addr, uint256.NewInt(50))
	if err := s.RestoreSnapshot(id); err != nil {
		t.Fatalf("first restore: %v", err)
	}
	s.SetBalance(addr, uint256.NewInt(50))
	if err := s.RestoreSnapshot(id); err != nil {
		t.Fatalf("second restore should still succeed when kept: %v", err)
	}
	if got := s.GetBalance(addr).Uint64(); got != 7 {
		t.Errorf("expected balance 7 after repeated restore, got %d", got)
	}
}

func TestFinishInvocationCapsRefund(t *testing.T) {
	s := New(DefaultConfig())
	s.state.AddRefund(10_000)

	tracer := vm.NewAnalysisTracer(s.config.detectorConfig())
	refund := s.finishInvocation(100, tracer) // cap = 100/5 = 20
	if refund != 20 {
		t.Errorf("expected refund capped to gasUsed/5=20, got %d", refund)
	}
	if got := s.state.Refund(); got != 0 {
		t.Errorf("expected the refund counter reset after finishInvocation, got %d", got)
	}
}

func TestFinishInvocationRefundBelowCapIsUncapped(t *testing.T) {
	s := New(DefaultConfig())
	s.state.AddRefund(50)

	tracer := vm.NewAnalysisTracer(s.config.detectorConfig())
	refund := s.finishInvocation(1_000, tracer) // cap = 200, refund 50 stays 50
	if refund != 50 {
		t.Errorf("expected uncapped refund of 50, got %d", refund)
	}
}

func TestFinishInvocationClearsTransientStorage(t *testing.T) {
	s := New(DefaultConfig())
	a := types.HexToAddress("0x0000000000000000000000000000000000000aaa")
	key := types.HexToWord("0x01")
	s.state.SetTransientState(a, key, types.HexToWord("0x63"))

	tracer := vm.NewAnalysisTracer(s.config.detectorConfig())
	s.finishInvocation(0, tracer)

	if !s.state.GetTransientState(a, key).IsZero() {
		t.Errorf("expected transient storage cleared once the invocation finished")
	}
}

func TestCallRecordOnlyIncludesItsOwnLogs(t *testing.T) {
	// emitLog is PUSH1 0 PUSH1 0 LOG0: emits a zero-length, zero-topic log.
	emitLog := []byte{0x60, 0, 0x60, 0, 0xa0}

	s := New(DefaultConfig())
	owner := types.HexToAddress("0x0000000000000000000000000000000000000aab")
	s.SetBalance(owner, uint256.NewInt(1_000_000_000))

	target := types.HexToAddress("0x0000000000000000000000000000000000000aac")
	s.state.SetCode(target, emitLog)

	first, err := s.Call(CallArgs{From: owner, To: target})
	if err != nil || !first.Success {
		t.Fatalf("first call failed: %v %v", err, first.Err)
	}
	if len(first.Logs) != 1 {
		t.Fatalf("expected exactly 1 log from the first call, got %d", len(first.Logs))
	}

	second, err := s.Call(CallArgs{From: owner, To: target})
	if err != nil || !second.Success {
		t.Fatalf("second call failed: %v %v", err, second.Err)
	}
	if len(second.Logs) != 1 {
		t.Errorf("expected the second call's record to hold only its own log, got %d", len(second.Logs))
	}
}

func TestCoverageAccumulatesAcrossInvocations(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg)

	owner := types.HexToAddress("0x0000000000000000000000000000000000000006")
	s.SetBalance(owner, uint256.NewInt(1_000_000_000))

	res, err := s.Deploy(DeployArgs{Owner: owner, Code: returnsFortyTwo})
	if err != nil || !res.Success {
		t.Fatalf("deploy failed: %v %v", err, res.Err)
	}

	before := s.Coverage().Len()
	if _, err := s.Call(CallArgs{From: owner, To: res.Address}); err != nil {
		t.Fatalf("call: %v", err)
	}
	after := s.Coverage().Len()
	if after <= before {
		t.Errorf("expected session coverage to grow after a call, before=%d after=%d", before, after)
	}
}
