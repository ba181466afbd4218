package state

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestCheckpointRevert(t *testing.T) {
	s := New()
	a := addr(1)

	s.SetBalance(a, uint256.NewInt(10))
	cp := s.Checkpoint()
	s.SetBalance(a, uint256.NewInt(99))
	s.SetNonce(a, 5)

	if s.GetBalance(a).Uint64() != 99 || s.GetNonce(a) != 5 {
		t.Fatalf("mutations not applied before revert")
	}

	s.RevertTo(cp)

	if got := s.GetBalance(a).Uint64(); got != 10 {
		t.Errorf("expected balance 10 after revert, got %d", got)
	}
	if got := s.GetNonce(a); got != 0 {
		t.Errorf("expected nonce 0 after revert, got %d", got)
	}
}

func TestCheckpointCommitKeepsMutations(t *testing.T) {
	s := New()
	a := addr(2)

	cp := s.Checkpoint()
	s.SetBalance(a, uint256.NewInt(42))
	s.Commit(cp)

	if got := s.GetBalance(a).Uint64(); got != 42 {
		t.Errorf("expected balance 42 after commit, got %d", got)
	}
	if s.OpenCheckpoints() != 0 {
		t.Errorf("expected no open checkpoints after commit, got %d", s.OpenCheckpoints())
	}
}

func TestNestedCheckpoints(t *testing.T) {
	s := New()
	a := addr(3)

	s.SetBalance(a, uint256.NewInt(1))
	outer := s.Checkpoint()
	s.SetBalance(a, uint256.NewInt(2))
	inner := s.Checkpoint()
	s.SetBalance(a, uint256.NewInt(3))

	s.RevertTo(inner)
	if got := s.GetBalance(a).Uint64(); got != 2 {
		t.Fatalf("expected balance 2 after inner revert, got %d", got)
	}

	s.RevertTo(outer)
	if got := s.GetBalance(a).Uint64(); got != 1 {
		t.Errorf("expected balance 1 after outer revert, got %d", got)
	}
}

func TestStorageFirstWritePerCheckpointReverts(t *testing.T) {
	s := New()
	a := addr(4)
	key := types.HexToWord("0x01")

	s.SetState(a, key, types.HexToWord("0xaa"))
	cp := s.Checkpoint()
	s.SetState(a, key, types.HexToWord("0xbb"))
	s.SetState(a, key, types.HexToWord("0xcc"))
	s.RevertTo(cp)

	if got := s.GetState(a, key); got != types.HexToWord("0xaa") {
		t.Errorf("expected slot reverted to 0xaa, got %s", got.Hex())
	}
}

func TestCloneRestoreRoundTrip(t *testing.T) {
	s := New()
	a, b := addr(5), addr(6)
	key := types.HexToWord("0x02")

	s.SetBalance(a, uint256.NewInt(100))
	s.SetNonce(a, 3)
	s.SetCode(a, []byte{0x60, 0x00})
	s.SetState(a, key, types.HexToWord("0x10"))
	s.AddLog(types.Log{Address: a})

	snap := s.Clone()

	s.SetBalance(a, uint256.NewInt(0))
	s.SetNonce(b, 7)
	s.SetState(a, key, types.HexToWord("0x20"))
	s.AddLog(types.Log{Address: b})

	s.RestoreFrom(snap)

	if got := s.GetBalance(a).Uint64(); got != 100 {
		t.Errorf("expected balance 100 after restore, got %d", got)
	}
	if got := s.GetNonce(a); got != 3 {
		t.Errorf("expected nonce 3 after restore, got %d", got)
	}
	if got := s.GetNonce(b); got != 0 {
		t.Errorf("expected account b untouched after restore, nonce got %d", got)
	}
	if got := s.GetState(a, key); got != types.HexToWord("0x10") {
		t.Errorf("expected slot restored to 0x10, got %s", got.Hex())
	}
	if len(s.Logs()) != 1 {
		t.Errorf("expected 1 log after restore, got %d", len(s.Logs()))
	}
	if s.OpenCheckpoints() != 0 {
		t.Errorf("expected no open checkpoints on a restored StateDB, got %d", s.OpenCheckpoints())
	}
}

func TestClearTransientStorage(t *testing.T) {
	s := New()
	a := addr(8)
	key := types.HexToWord("0x01")

	s.SetTransientState(a, key, types.HexToWord("0x63"))
	if s.GetTransientState(a, key).IsZero() {
		t.Fatalf("expected transient value set before clear")
	}

	s.ClearTransientStorage()

	if !s.GetTransientState(a, key).IsZero() {
		t.Errorf("expected transient storage cleared, still found a value")
	}
}

func TestFinalizeKeepsNonNewlyCreatedSelfdestruct(t *testing.T) {
	s := New()
	a := addr(9)

	// An account reached only through SetBalance/SetCode (never explicitly
	// CreateAccount'd) is not newlyCreated, matching a pre-existing account
	// touched by this invocation.
	s.SetBalance(a, uint256.NewInt(5))
	s.SetCode(a, []byte{0x60, 0x00})

	s.Selfdestruct(a)
	s.Finalize()

	if !s.Exist(a) {
		t.Fatalf("expected a self-destructed pre-existing account to survive Finalize (EIP-6780)")
	}
	if got := s.GetBalance(a).Uint64(); got != 0 {
		t.Errorf("expected balance swept to 0, got %d", got)
	}
	if len(s.GetCode(a)) == 0 {
		t.Errorf("expected code to survive for a non-newly-created self-destructed account")
	}
}

func TestFinalizeDeletesNewlyCreatedSelfdestruct(t *testing.T) {
	s := New()
	a := addr(10)

	s.CreateAccount(a)
	s.SetCode(a, []byte{0x60, 0x00})
	s.Selfdestruct(a)
	s.Finalize()

	if s.Exist(a) {
		t.Errorf("expected an account self-destructed within its creating invocation to be fully deleted")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	a := addr(7)
	s.SetBalance(a, uint256.NewInt(5))

	clone := s.Clone()
	clone.SetBalance(a, uint256.NewInt(500))

	if got := s.GetBalance(a).Uint64(); got != 5 {
		t.Errorf("mutating a clone must not affect the original, got %d", got)
	}
}
