package chess

import (
	internal "github.com/kolkov/interleave/internal/chess/api"
)

// Thread is the handle of a spawned thread.
type Thread = internal.Thread

// Init creates the scheduler runtime and makes the calling goroutine the
// root thread. The interleave tool inserts the call in an init function of
// package main. Calling Init more than once has no effect.
func Init() {
	internal.Init()
}

// Fini terminates the root thread and logs the exploration summary. After
// Fini every operation is a pass-through.
func Fini() {
	internal.Fini()
}

// Spawn starts entry(arg) on a new thread. The new thread runs only when
// the scheduler hands it the token: at the spawner's next Join, Yield,
// blocked Lock, forced switch or termination.
func Spawn(entry func(arg any) any, arg any) *Thread {
	return internal.Spawn(entry, arg)
}

// Go starts fn on a new thread. It is what instrumented go statements call.
func Go(fn func()) *Thread {
	return internal.Spawn(func(any) any {
		fn()
		return nil
	}, nil)
}

// Join waits until t has terminated and returns the value its entry
// function returned.
func Join(t *Thread) any {
	return internal.Join(t)
}

// Yield lets the first other runnable thread run before the caller
// continues.
func Yield() {
	internal.Yield()
}
