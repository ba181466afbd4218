package session

import (
	"github.com/pkg/errors"

	"github.com/sbip-sg/tevm/state"
)

// ErrUnknownSnapshot is returned by RestoreSnapshot/DropSnapshot for an ID
// that was never taken, or was already dropped.
var ErrUnknownSnapshot = errors.New("session: unknown snapshot id")

// ErrOpenCheckpoint is returned by TakeSnapshot if called while a
// journal-based checkpoint is still open, which should never happen
// between two top-level Deploy/Call invocations (each commits or reverts
// its own checkpoint before returning) but is checked explicitly since a
// snapshot taken mid-call would silently drop the ability to revert it.
var ErrOpenCheckpoint = errors.New("session: cannot snapshot with an open checkpoint")

// snapshotStore holds the whole-state clones TakeSnapshot produces, keyed by
// a monotonically increasing ID. It is a thin map wrapper rather than a
// slice since snapshots can be dropped out of order.
type snapshotStore struct {
	next  uint64
	clones map[uint64]*state.StateDB
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{clones: make(map[uint64]*state.StateDB)}
}

// TakeSnapshot deep-clones the session's current state and returns an
// opaque ID to restore or drop it later. Expensive relative to a journal
// checkpoint; meant to be called once per fuzz iteration's base state, not
// per call.
func (s *Session) TakeSnapshot() (uint64, error) {
	if s.state.OpenCheckpoints() > 0 {
		return 0, ErrOpenCheckpoint
	}
	id := s.snaps.next
	s.snaps.next++
	s.snaps.clones[id] = s.state.Clone()
	return id, nil
}

// RestoreSnapshot rewinds the session's state to the point TakeSnapshot(id)
// was taken. Unless KeepSnapshotAfterRestore is set, the snapshot is
// consumed (dropped) after restoring, matching the common fuzz-loop idiom
// of "rewind, try again, rewind, try again" without leaking the old clones.
func (s *Session) RestoreSnapshot(id uint64) error {
	clone, ok := s.snaps.clones[id]
	if !ok {
		return ErrUnknownSnapshot
	}
	s.state.RestoreFrom(clone)
	if !s.config.KeepSnapshotAfterRestore {
		delete(s.snaps.clones, id)
	}
	return nil
}

// DropSnapshot releases a snapshot's memory without restoring it.
func (s *Session) DropSnapshot(id uint64) error {
	if _, ok := s.snaps.clones[id]; !ok {
		return ErrUnknownSnapshot
	}
	delete(s.snaps.clones, id)
	return nil
}
