// Package scheduler implements the scheduling token and the global
// serialization discipline of the CHESS runtime.
//
// Two pieces of state decide who runs:
//
//   - The token: an atomic TID naming the only thread allowed to leave a
//     park. Threads hand it to each other explicitly (Handoff); nobody
//     grabs it.
//   - The turn: a genuine sync.Mutex plus the TID that owns it. A thread
//     holds its turn while it executes target code between two shim
//     calls, and gives it up before it parks. The turn is re-entrant per
//     thread: Enter is a no-op for the current owner and Leave is a no-op
//     for anybody else.
//
// Parking is a busy-wait with a genuine runtime.Gosched in the loop. A
// parked thread that is handed the token while it cannot make progress
// (its mutex is still held, its join target is still running) forwards
// the token to the thread it waits on, or to the next enabled thread if
// that one is gone. When nobody can make progress the threads keep
// spinning: a scheduling deadlock is a hang, never an error.
//
// The scheduler never blocks a goroutine on a genuine primitive while that
// goroutine owns the token, so the Go runtime's own deadlock detector
// never fires for a target deadlock.
//
// Observability:
//
//   - MaxConcurrent: highest number of turn owners ever observed at once
//   - Trace: bounded ring of scheduling events (spawn, grant, release,
//     handoff, exit) used by determinism tests
//   - Snapshot/Dump: state of every thread and mutex
//
// Halt releases every spinning goroutine with runtime.Goexit, so a runtime
// that was driven into a deadlock on purpose can be torn down inside a
// test process.
package scheduler
