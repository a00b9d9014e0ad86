package goroutine

import (
	"fmt"
	"sync/atomic"
)

// TID identifies a logical thread. TIDs are assigned sequentially and are
// never reused within a process.
type TID int64

// None is the "no thread" sentinel used by the scheduling token and by
// unheld mutex records.
const None TID = 0

// State is the scheduling state of a thread.
type State int32

const (
	// Spawned: created by the spawner, not yet parked in its wrapper.
	Spawned State = iota
	// RunnableIdle: may be selected to run at any hand-off.
	RunnableIdle
	// RunnableBlockedOnLock: waiting for a mutex held by another thread.
	RunnableBlockedOnLock
	// RunnableBlockedOnJoin: waiting for another thread to terminate.
	RunnableBlockedOnJoin
	// Terminated: entry function returned.
	Terminated
)

func (s State) String() string {
	switch s {
	case Spawned:
		return "Spawned"
	case RunnableIdle:
		return "RunnableIdle"
	case RunnableBlockedOnLock:
		return "RunnableBlockedOnLock"
	case RunnableBlockedOnJoin:
		return "RunnableBlockedOnJoin"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Blocker is something a parked thread waits on: a mutex record or the
// record of a thread being joined.
type Blocker interface {
	// Cleared reports whether the wait is over.
	Cleared() bool
	// Owner returns the thread that has to run for the wait to end.
	Owner() TID
}

// blockerBox keeps the concrete type stored in an atomic.Value constant.
type blockerBox struct {
	b Blocker
}

// Record is the registry entry of one logical thread.
type Record struct {
	// ID is the sequential thread identifier (1 is the root thread).
	ID TID

	// Parent is the TID of the spawning thread (None for adopted threads).
	Parent TID

	gid     atomic.Int64
	state   atomic.Int32
	blocker atomic.Value // blockerBox
}

func newRecord(id, parent TID) *Record {
	r := &Record{ID: id, Parent: parent}
	r.state.Store(int32(Spawned))
	r.blocker.Store(blockerBox{})
	return r
}

// State returns the current scheduling state.
func (r *Record) State() State {
	return State(r.state.Load())
}

// SetState overwrites the scheduling state.
func (r *Record) SetState(s State) {
	r.state.Store(int32(s))
}

// GID returns the Go goroutine ID bound to this record, or 0 if the
// thread has not started yet.
func (r *Record) GID() int64 {
	return r.gid.Load()
}

// Block marks the thread as waiting on b. state must be one of the
// RunnableBlocked states.
func (r *Record) Block(b Blocker, state State) {
	r.blocker.Store(blockerBox{b: b})
	r.SetState(state)
}

// Unblock returns the thread to RunnableIdle and forgets its blocker.
func (r *Record) Unblock() {
	r.blocker.Store(blockerBox{})
	r.SetState(RunnableIdle)
}

// Blocker returns what the thread currently waits on, or nil.
func (r *Record) Blocker() Blocker {
	return r.blocker.Load().(blockerBox).b
}

// Enabled reports whether the thread could make progress if it were
// handed the scheduling token.
func (r *Record) Enabled() bool {
	switch r.State() {
	case RunnableIdle:
		return true
	case RunnableBlockedOnLock, RunnableBlockedOnJoin:
		b := r.Blocker()
		return b == nil || b.Cleared()
	default:
		return false
	}
}

// Cleared implements Blocker for joiners: the wait ends on termination.
func (r *Record) Cleared() bool {
	return r.State() == Terminated
}

// Owner implements Blocker: a joined thread has to run itself to finish.
func (r *Record) Owner() TID {
	return r.ID
}

func (r *Record) String() string {
	return fmt.Sprintf("T%d(%s)", r.ID, r.State())
}
