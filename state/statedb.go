// Package state implements the journaled account/storage database the
// interpreter executes against: balances, nonces, code, storage slots,
// transient storage (EIP-1153), the EIP-2929 access list, and the two
// distinct revert mechanisms a symbolic/fuzz driver needs — cheap nested
// checkpoints for per-call revert, and an expensive whole-state snapshot
// for restoring to a base fork point across many trial executions.
package state

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

// Reader is the read-through interface to the forked backing state: it is
// consulted only for accounts/slots never mutated locally, with results
// cached for the lifetime of the StateDB.
type Reader interface {
	GetAccount(addr types.Address) (types.Account, bool, error)
	GetCode(addr types.Address, codeHash types.Word) ([]byte, error)
	GetStorage(addr types.Address, key types.Word) (types.Word, error)
}

// StateDB is the journaled, optionally fork-backed account database for
// one session.
type StateDB struct {
	reader  Reader
	objects map[types.Address]*stateObject

	accessList *accessList
	transient  map[types.Address]map[types.Word]types.Word

	logs   []types.Log
	refund uint64

	journal *journal
}

// New returns an empty StateDB with no backing reader (a from-genesis
// session). Use NewForked to back it with a provider cache.
func New() *StateDB {
	return &StateDB{
		objects:    make(map[types.Address]*stateObject),
		accessList: newAccessList(),
		transient:  make(map[types.Address]map[types.Word]types.Word),
		journal:    newJournal(),
	}
}

// NewForked returns a StateDB that reads through to r for any account or
// slot it has not seen locally.
func NewForked(r Reader) *StateDB {
	s := New()
	s.reader = r
	return s
}

func (s *StateDB) getStateObject(addr types.Address) *stateObject {
	if obj, ok := s.objects[addr]; ok {
		return obj
	}
	obj := newStateObject(addr)
	if s.reader != nil {
		if acc, ok, err := s.reader.GetAccount(addr); err == nil && ok {
			obj.account = acc
		}
	}
	s.objects[addr] = obj
	return obj
}

func (s *StateDB) getOrNewStateObject(addr types.Address) *stateObject {
	obj := s.getStateObject(addr)
	return obj
}

// CreateAccount ensures addr has a (possibly empty) account object,
// journaling its prior state so a revert restores pre-existence.
func (s *StateDB) CreateAccount(addr types.Address) {
	var prev *stateObject
	if existing, ok := s.objects[addr]; ok {
		cp := existing.copy()
		prev = cp
	}
	obj := newStateObject(addr)
	obj.newlyCreated = true
	if prev != nil {
		obj.account.Balance = new(uint256.Int).Set(prev.account.Balance)
	}
	s.objects[addr] = obj
	s.journal.append(createAccountChange{addr: addr, prev: prev})
}

func (s *StateDB) Exist(addr types.Address) bool {
	if _, ok := s.objects[addr]; ok {
		return true
	}
	if s.reader != nil {
		_, ok, _ := s.reader.GetAccount(addr)
		return ok
	}
	return false
}

func (s *StateDB) Empty(addr types.Address) bool {
	obj := s.getStateObject(addr)
	return obj.empty()
}

func (s *StateDB) GetBalance(addr types.Address) *uint256.Int {
	return new(uint256.Int).Set(s.getStateObject(addr).account.Balance)
}

func (s *StateDB) SetBalance(addr types.Address, amount *uint256.Int) {
	obj := s.getStateObject(addr)
	prev := new(uint256.Int).Set(obj.account.Balance)
	obj.account.Balance = new(uint256.Int).Set(amount)
	s.journal.append(balanceChange{addr: addr, prev: prev})
}

func (s *StateDB) AddBalance(addr types.Address, amount *uint256.Int) {
	if amount.IsZero() {
		s.getStateObject(addr) // touch, so an empty-account zero-value transfer still surfaces the account
		return
	}
	obj := s.getStateObject(addr)
	prev := new(uint256.Int).Set(obj.account.Balance)
	obj.account.Balance = new(uint256.Int).Add(prev, amount)
	s.journal.append(balanceChange{addr: addr, prev: prev})
}

func (s *StateDB) SubBalance(addr types.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	obj := s.getStateObject(addr)
	prev := new(uint256.Int).Set(obj.account.Balance)
	obj.account.Balance = new(uint256.Int).Sub(prev, amount)
	s.journal.append(balanceChange{addr: addr, prev: prev})
}

func (s *StateDB) GetNonce(addr types.Address) uint64 {
	return s.getStateObject(addr).account.Nonce
}

func (s *StateDB) SetNonce(addr types.Address, nonce uint64) {
	obj := s.getStateObject(addr)
	prev := obj.account.Nonce
	obj.account.Nonce = nonce
	s.journal.append(nonceChange{addr: addr, prev: prev})
}

func (s *StateDB) GetCodeHash(addr types.Address) types.Word {
	return s.getStateObject(addr).account.CodeHash
}

func (s *StateDB) GetCode(addr types.Address) []byte {
	obj := s.getStateObject(addr)
	if obj.code != nil || obj.account.CodeHash == types.EmptyCodeHash {
		return obj.code
	}
	if s.reader != nil {
		if code, err := s.reader.GetCode(addr, obj.account.CodeHash); err == nil {
			obj.code = code
			return code
		}
	}
	return nil
}

func (s *StateDB) GetCodeSize(addr types.Address) int { return len(s.GetCode(addr)) }

func (s *StateDB) SetCode(addr types.Address, code []byte) {
	obj := s.getStateObject(addr)
	prevCode, prevHash := obj.code, obj.account.CodeHash
	obj.setCode(code)
	s.journal.append(codeChange{addr: addr, prevCode: prevCode, prevHash: prevHash})
}

// GetState returns the current (dirty-or-committed) value of a storage
// slot, reading through to the fork provider on first access.
func (s *StateDB) GetState(addr types.Address, key types.Word) types.Word {
	obj := s.getStateObject(addr)
	if v, ok := obj.dirtyStorage[key]; ok {
		return v
	}
	if v, ok := obj.originStorage[key]; ok {
		return v
	}
	var v types.Word
	if s.reader != nil {
		if rv, err := s.reader.GetStorage(addr, key); err == nil {
			v = rv
		}
	}
	obj.originStorage[key] = v
	return v
}

func (s *StateDB) SetState(addr types.Address, key, value types.Word) {
	obj := s.getStateObject(addr)
	prev, existed := obj.dirtyStorage[key]
	if !existed {
		prev = s.GetState(addr, key)
	}
	obj.dirtyStorage[key] = value
	s.journal.append(storageChange{addr: addr, key: key, prev: prev, prevExists: existed})
}

// GetTransientState / SetTransientState implement EIP-1153: storage that
// lives only for the duration of the top-level call and is never
// persisted or read through to the fork provider.
func (s *StateDB) GetTransientState(addr types.Address, key types.Word) types.Word {
	return s.transient[addr][key]
}

func (s *StateDB) SetTransientState(addr types.Address, key, value types.Word) {
	prevSlots, had := s.transient[addr]
	prev := types.Word{}
	hadKey := false
	if had {
		prev, hadKey = prevSlots[key]
	}
	if s.transient[addr] == nil {
		s.transient[addr] = make(map[types.Word]types.Word)
	}
	s.transient[addr][key] = value
	s.journal.append(transientStorageChange{addr: addr, key: key, prev: prev, had: hadKey})
}

// ClearTransientStorage wipes every EIP-1153 transient slot. Transient
// storage is scoped to a single top-level invocation, never to the session,
// so a caller must call this once that invocation has returned and before
// the next one starts — otherwise a TSTORE from one Call would be visible
// to a TLOAD in the next.
func (s *StateDB) ClearTransientStorage() {
	s.transient = make(map[types.Address]map[types.Word]types.Word)
}

// Selfdestruct marks addr for removal at end of transaction. Per
// EIP-6780, if addr was not created earlier in the same transaction, its
// code and storage survive; only the balance is swept to beneficiary by
// the caller before this is invoked.
func (s *StateDB) Selfdestruct(addr types.Address) {
	obj := s.getStateObject(addr)
	prevDestructed := obj.selfDestructed
	prevBalance := new(uint256.Int).Set(obj.account.Balance)
	obj.selfDestructed = true
	obj.account.Balance = new(uint256.Int)
	s.journal.append(selfDestructChange{addr: addr, prevDestructed: prevDestructed, prevBalance: prevBalance})
}

func (s *StateDB) HasSelfDestructed(addr types.Address) bool {
	return s.getStateObject(addr).selfDestructed
}

func (s *StateDB) CreatedThisTx(addr types.Address) bool {
	return s.getStateObject(addr).newlyCreated
}

// --- access list (EIP-2929) ------------------------------------------------

func (s *StateDB) AddressInAccessList(addr types.Address) bool {
	return s.accessList.ContainsAddress(addr)
}

func (s *StateDB) SlotInAccessList(addr types.Address, slot types.Word) (addrWarm, slotWarm bool) {
	return s.accessList.ContainsSlot(addr, slot)
}

func (s *StateDB) AddAddressToAccessList(addr types.Address) {
	if !s.accessList.AddAddress(addr) {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
}

func (s *StateDB) AddSlotToAccessList(addr types.Address, slot types.Word) {
	addrWarm, slotWarm := s.accessList.AddSlot(addr, slot)
	if !addrWarm {
		s.journal.append(accessListAddAccountChange{addr: addr})
	}
	if !slotWarm {
		s.journal.append(accessListAddSlotChange{addr: addr, slot: slot})
	}
}

// --- logs and refunds -------------------------------------------------------

func (s *StateDB) AddLog(l types.Log) {
	s.journal.append(logChange{prevLen: len(s.logs)})
	s.logs = append(s.logs, l)
}

func (s *StateDB) Logs() []types.Log { return s.logs }

func (s *StateDB) AddRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	s.refund += gas
}

func (s *StateDB) SubRefund(gas uint64) {
	s.journal.append(refundChange{prev: s.refund})
	if gas > s.refund {
		s.refund = 0
		return
	}
	s.refund -= gas
}

func (s *StateDB) Refund() uint64 { return s.refund }

// ResetRefund reports the accumulated refund and zeroes the counter. The
// refund counter is scoped to a single top-level invocation (each one starts
// from zero, mirroring a fresh transaction); a caller applies the capped
// refund to gas accounting and then calls this once the invocation has
// returned, so the next invocation does not inherit it. It does not go
// through the journal: by the time it is called no further revert is
// possible.
func (s *StateDB) ResetRefund() uint64 {
	r := s.refund
	s.refund = 0
	return r
}

// --- checkpoint / revert (nested, per call frame) --------------------------

// Checkpoint marks the journal position to roll back to on a reverted
// sub-call; it is cheap and may be taken once per CALL/CREATE frame.
func (s *StateDB) Checkpoint() int { return s.journal.checkpoint() }

// RevertTo undoes every mutation recorded since id.
func (s *StateDB) RevertTo(id int) { s.journal.revertTo(id, s) }

// Commit drops a checkpoint (and any taken after it) without reverting,
// once the frame it guarded has returned successfully; the mutations stay
// in place. It is called per frame. Empty-account pruning and removal of
// self-destructed accounts are not done here but in Finalize.
func (s *StateDB) Commit(id int) {
	s.journal.discard(id)
}

// OpenCheckpoints reports how many checkpoints are currently open (taken
// but neither committed nor reverted). A whole-state snapshot must only be
// taken between top-level invocations, when this is zero.
func (s *StateDB) OpenCheckpoints() int { return len(s.journal.checkpoints) }

// Finalize performs end-of-transaction cleanup: EIP-161 pruning of empty
// touched accounts, and removal of self-destructed accounts that were also
// created within the same top-level invocation (EIP-6780). A self-destructed
// account that predates this invocation keeps its code and storage — only
// its balance, already swept to zero by Selfdestruct, is gone. It also
// resets the EIP-2929 access list. It does not itself interact with the
// journal; call it once the top-level call has returned and no further
// revert is possible.
func (s *StateDB) Finalize() {
	s.accessList = newAccessList()
	for addr, obj := range s.objects {
		if obj.selfDestructed && obj.newlyCreated {
			delete(s.objects, addr)
			continue
		}
		if obj.empty() {
			delete(s.objects, addr)
			continue
		}
		// This invocation is over: an account that survives it is no longer
		// "newly created" for any later invocation's EIP-6780 check.
		obj.newlyCreated = false
	}
}
