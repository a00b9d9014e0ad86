// Package api implements the intercept shim of the CHESS runtime.
//
// The shim replaces five operations of a target program: spawning a
// thread, joining it, acquiring and releasing a mutex, and yielding. Each
// replacement performs scheduling bookkeeping and then delegates to the
// genuine implementation (a go statement, a channel receive, the
// sync.Mutex methods, runtime.Gosched), which are resolved once and
// cached.
//
// The bookkeeping enforces a strict cooperative total order: exactly one
// logical thread executes target code at any time, and control passes
// only at shim calls. Grants and releases are synchronization points; in
// replay mode the tracker forces one extra context switch at the chosen
// point, so successive runs explore successive interleavings.
//
// Flow of Lock(m):
//
//	holder := shadow(m).Holder()
//	if holder is another thread:
//	    leave the turn, block on m, hand the token to holder, park
//	    re-enter the turn
//	mark self RunnableIdle
//	sync point (may force a switch)
//	if m is still unheld: record self as holder, else retry
//	genuine Lock (never blocks)
//
// A Runtime can be created explicitly with New (tests, embedding), but
// most programs use the process-wide runtime built by Init from the
// CHESS_* environment variables. Before Init and after Fini every
// operation is a plain pass-through to the genuine primitive.
package api
