// Package goroutine implements the thread registry of the CHESS scheduler.
//
// Every logical thread the scheduler knows about has a Record. Records are
// created by the spawning thread (so registry order is the same in every
// run of a deterministic program), receive sequential TIDs starting at 1,
// and are never removed: a terminated record stays queryable for the life
// of the process so that join can detect completion.
//
// State transitions:
//
//	Spawned ──start──▶ RunnableIdle ◀──────────────┐
//	                        │  lock held elsewhere  │ mutex released
//	                        ├──────────────▶ RunnableBlockedOnLock
//	                        │  join unfinished      │ target terminated
//	                        ├──────────────▶ RunnableBlockedOnJoin
//	                        ▼
//	                    Terminated
//
// The state of a record is an atomic scalar. Spinning threads poll it (and
// the state of whatever they are blocked on) without holding any lock.
package goroutine
