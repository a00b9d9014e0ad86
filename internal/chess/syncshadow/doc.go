// Package syncshadow implements the mutex ownership table of the CHESS
// scheduler.
//
// The genuine sync.Mutex does not expose its owner, so the scheduler keeps
// a shadow record per mutex that names the logical thread holding
// it. The shadow is consulted before every grant: a thread that finds the
// record held by another thread does not call the genuine Lock (which would
// block the goroutine while it still holds its turn); it parks and hands
// the scheduling token to the holder instead.
//
// Key Concepts:
//
// Shadow Record:
//   - One MutexRecord per mutex, created on first access
//   - Holder is the TID of the owning thread, or goroutine.None
//   - Records are never destroyed and keep their mutex reachable, so a
//     collected mutex's address cannot be inherited by a new one
//   - IDs are sequential in first-access order, so they are stable across
//     runs of a deterministic program and can appear in traces
//
// Example:
//
//	table := NewTable()
//	rec := table.GetOrCreate(&mu)
//	if !rec.Held() {
//	    rec.SetHolder(self)
//	}
//
// Thread Safety:
//
// GetOrCreate is safe for concurrent use. Holder updates are atomic stores;
// they are only performed by the thread owning the scheduling turn, while
// spinning threads read them without locks.
package syncshadow
