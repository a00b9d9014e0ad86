// Package chess runs a Go program under a cooperative scheduler that
// explores thread interleavings one run at a time.
//
// Programs route their thread lifecycle and mutex operations through this
// package: [Spawn] / [Go] instead of go statements, [Join] instead of
// ad-hoc waiting, [Mutex] instead of sync.Mutex and [Yield] instead of
// runtime.Gosched. Between two such calls exactly one thread runs.
//
// # Quick Start
//
// The interleave tool rewrites sources automatically and sweeps every
// interleaving:
//
//	$ interleave build -o prog main.go
//	$ interleave explore ./prog
//
// For manual use:
//
//	func main() {
//		chess.Init()
//		defer chess.Fini()
//
//		var mu chess.Mutex
//		t := chess.Go(func() {
//			mu.Lock()
//			defer mu.Unlock()
//			// ...
//		})
//		chess.Join(t)
//	}
//
// # How It Works
//
// Every mutex grant and release is a synchronization point. The first run
// of a program (no state file, or state "0/0") only counts them and leaves
// "0/<total>" in the state file. Each following run reads "<i>/<total>",
// forces one context switch at point i, and writes "<i+1>/<total>" back.
// A driver that reruns the program <total> times therefore tries every
// single-preemption schedule exactly once; a run that crashes or hangs
// identifies the interleaving by its index.
//
// # Environment
//
//   - CHESS_STATE_FILE: state file path (default ".tracksyncpts")
//   - CHESS_V: log verbosity, 0 is quiet
//   - CHESS_DISABLE: "1" or "true" keeps every call a plain pass-through
//   - CHESS_SESSION: identifier set by the driver, logged
//
// # Limitations
//
// Only mutexes, thread create/join and voluntary yields are scheduled.
// Channels, sync.RWMutex, sync.WaitGroup and sync.Cond bypass the
// scheduler; a thread blocking in one of them while it holds its turn
// stalls the program. A deadlock under exploration shows up as threads
// spinning forever, which the driver reports as a hang.
package chess
