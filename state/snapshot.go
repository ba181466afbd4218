package state

import "github.com/sbip-sg/tevm/types"

// Clone returns a deep copy of s: every state object, the access list, and
// pending logs/refund, but a fresh (empty) journal, since a clone starts as
// its own baseline with nothing to revert yet. The reader is shared (it is
// immutable read-through state, safe across clones).
//
// This is the whole-state snapshot mechanism the session façade drives via
// TakeSnapshot/RestoreSnapshot/DropSnapshot, distinct from the journal-based
// Checkpoint/RevertTo used for per-call revert: a clone survives Finalize
// and repeated top-level calls, where a checkpoint only spans one call.
func (s *StateDB) Clone() *StateDB {
	cp := &StateDB{
		reader:     s.reader,
		objects:    make(map[types.Address]*stateObject, len(s.objects)),
		accessList: s.accessList.copy(),
		transient:  make(map[types.Address]map[types.Word]types.Word, len(s.transient)),
		logs:       append([]types.Log(nil), s.logs...),
		refund:     s.refund,
		journal:    newJournal(),
	}
	for addr, obj := range s.objects {
		cp.objects[addr] = obj.copy()
	}
	for addr, slots := range s.transient {
		m := make(map[types.Word]types.Word, len(slots))
		for k, v := range slots {
			m[k] = v
		}
		cp.transient[addr] = m
	}
	return cp
}

// RestoreFrom overwrites s's contents with a deep copy of snap, keeping s's
// own identity (so callers holding *StateDB keep a valid pointer across a
// restore). The journal is reset, since nothing taken before a restore can
// be reverted to afterward.
func (s *StateDB) RestoreFrom(snap *StateDB) {
	clone := snap.Clone()
	s.reader = clone.reader
	s.objects = clone.objects
	s.accessList = clone.accessList
	s.transient = clone.transient
	s.logs = clone.logs
	s.refund = clone.refund
	s.journal = newJournal()
}
