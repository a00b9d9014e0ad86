package scheduler

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/kolkov/interleave/internal/chess/goroutine"
	"github.com/kolkov/interleave/internal/chess/syncshadow"
)

// ThreadInfo is the snapshot of one thread.
type ThreadInfo struct {
	ID        goroutine.TID
	Parent    goroutine.TID
	State     string
	WaitingOn goroutine.TID
	Holding   []syncshadow.MutexID
}

// MutexInfo is the snapshot of one mutex.
type MutexInfo struct {
	ID     syncshadow.MutexID
	Holder goroutine.TID
}

// Snapshot is a point-in-time view of the scheduler. Values read from
// different atomics are not mutually consistent unless the caller owns
// the turn.
type Snapshot struct {
	Token   goroutine.TID
	Owner   goroutine.TID
	Halted  bool
	Live    int
	Threads []ThreadInfo
	Mutexes []MutexInfo
}

// Snapshot collects the current state.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Token:  s.Token(),
		Owner:  s.Owner(),
		Halted: s.Halted(),
		Live:   s.threads.Live(),
	}
	for _, rec := range s.threads.Records() {
		info := ThreadInfo{ID: rec.ID, Parent: rec.Parent, State: rec.State().String()}
		if b := rec.Blocker(); b != nil {
			info.WaitingOn = b.Owner()
		}
		for _, m := range s.mutexes.HeldBy(rec.ID) {
			info.Holding = append(info.Holding, m.ID)
		}
		snap.Threads = append(snap.Threads, info)
	}
	for _, m := range s.mutexes.Records() {
		snap.Mutexes = append(snap.Mutexes, MutexInfo{ID: m.ID, Holder: m.Holder()})
	}
	return snap
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump renders the snapshot for debug logs and test failures.
func (s *Scheduler) Dump() string {
	return dumpConfig.Sdump(s.Snapshot())
}
