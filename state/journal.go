package state

import (
	"github.com/holiman/uint256"

	"github.com/sbip-sg/tevm/types"
)

// journalEntry is one revertible state mutation.
type journalEntry interface {
	revert(s *StateDB)
}

// journal records every mutation in order, and each checkpoint marks a
// position in that record, so Checkpoint / RevertTo can undo the mutations
// above a checkpoint in LIFO order. This is distinct from the
// deep-clone TakeSnapshot/RestoreSnapshot mechanism in snapshot.go: the
// journal is cheap, nested, per-call-frame bookkeeping, while a full
// snapshot is an expensive whole-state copy meant to be taken rarely
// (e.g. once per fuzz iteration) and restored many times.
type journal struct {
	entries     []journalEntry
	checkpoints map[int]int
	nextID      int
}

func newJournal() *journal {
	return &journal{checkpoints: make(map[int]int)}
}

func (j *journal) append(entry journalEntry) { j.entries = append(j.entries, entry) }
func (j *journal) length() int               { return len(j.entries) }

func (j *journal) checkpoint() int {
	id := j.nextID
	j.nextID++
	j.checkpoints[id] = len(j.entries)
	return id
}

func (j *journal) revertTo(id int, s *StateDB) {
	idx, ok := j.checkpoints[id]
	if !ok {
		return
	}
	for i := len(j.entries) - 1; i >= idx; i-- {
		j.entries[i].revert(s)
	}
	j.entries = j.entries[:idx]
	for cid := range j.checkpoints {
		if cid >= id {
			delete(j.checkpoints, cid)
		}
	}
}

// discard drops a checkpoint (and any nested ones) without reverting,
// once the caller knows it will never roll back to it.
func (j *journal) discard(id int) {
	for cid := range j.checkpoints {
		if cid >= id {
			delete(j.checkpoints, cid)
		}
	}
}

// --- concrete entries ------------------------------------------------------

type createAccountChange struct {
	addr types.Address
	prev *stateObject
}

func (ch createAccountChange) revert(s *StateDB) {
	if ch.prev == nil {
		delete(s.objects, ch.addr)
	} else {
		s.objects[ch.addr] = ch.prev
	}
}

type balanceChange struct {
	addr types.Address
	prev *uint256.Int
}

func (ch balanceChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.account.Balance = ch.prev
	}
}

type nonceChange struct {
	addr types.Address
	prev uint64
}

func (ch nonceChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.account.Nonce = ch.prev
	}
}

type codeChange struct {
	addr     types.Address
	prevCode []byte
	prevHash types.Word
}

func (ch codeChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.code = ch.prevCode
		obj.account.CodeHash = ch.prevHash
	}
}

type storageChange struct {
	addr       types.Address
	key        types.Word
	prev       types.Word
	prevExists bool
}

func (ch storageChange) revert(s *StateDB) {
	obj := s.getStateObject(ch.addr)
	if obj == nil {
		return
	}
	if ch.prevExists {
		obj.dirtyStorage[ch.key] = ch.prev
	} else {
		delete(obj.dirtyStorage, ch.key)
	}
}

type selfDestructChange struct {
	addr           types.Address
	prevDestructed bool
	prevBalance    *uint256.Int
}

func (ch selfDestructChange) revert(s *StateDB) {
	if obj := s.getStateObject(ch.addr); obj != nil {
		obj.selfDestructed = ch.prevDestructed
		obj.account.Balance = ch.prevBalance
	}
}

type accessListAddAccountChange struct {
	addr types.Address
}

func (ch accessListAddAccountChange) revert(s *StateDB) { s.accessList.DeleteAddress(ch.addr) }

type accessListAddSlotChange struct {
	addr types.Address
	slot types.Word
}

func (ch accessListAddSlotChange) revert(s *StateDB) { s.accessList.DeleteSlot(ch.addr, ch.slot) }

type transientStorageChange struct {
	addr types.Address
	key  types.Word
	prev types.Word
	had  bool
}

func (ch transientStorageChange) revert(s *StateDB) {
	if !ch.had {
		delete(s.transient[ch.addr], ch.key)
		if len(s.transient[ch.addr]) == 0 {
			delete(s.transient, ch.addr)
		}
		return
	}
	s.transient[ch.addr][ch.key] = ch.prev
}

type logChange struct {
	prevLen int
}

func (ch logChange) revert(s *StateDB) { s.logs = s.logs[:ch.prevLen] }

type refundChange struct {
	prev uint64
}

func (ch refundChange) revert(s *StateDB) { s.refund = ch.prev }
