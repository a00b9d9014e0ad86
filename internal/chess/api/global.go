package api

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/kolkov/interleave/internal/chess/state"
	"github.com/kolkov/interleave/internal/logging"
)

var (
	// current is the process-wide runtime. Nil means pass-through: every
	// operation goes straight to the genuine primitive.
	current atomic.Pointer[Runtime]

	// initMu serializes Init and Fini.
	initMu sync.Mutex
)

// Current returns the process-wide runtime, or nil.
func Current() *Runtime {
	return current.Load()
}

// Init creates the process-wide runtime from the environment and attaches
// the calling goroutine as the root thread. Calling Init again is a no-op.
// With CHESS_DISABLE set the process stays in pass-through mode.
func Init() {
	initMu.Lock()
	defer initMu.Unlock()

	if current.Load() != nil {
		return
	}
	cfg := LoadConfig()
	if cfg.Disabled {
		return
	}

	log := logging.New("chess", cfg.Verbosity)
	rt, err := New(Options{
		Store:   state.NewFile(cfg.StateFile),
		Logger:  log,
		Session: cfg.Session,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "chess: fatal: %v\n", err)
		os.Exit(2)
	}

	current.Store(rt)
	root := rt.Attach()
	log.VI(1).Infof("chess runtime initialized: root T%d, state file %s, session %q", root, cfg.StateFile, cfg.Session)
}

// Fini finalizes the process-wide runtime and returns to pass-through
// mode.
func Fini() {
	initMu.Lock()
	rt := current.Swap(nil)
	initMu.Unlock()

	if rt != nil {
		rt.Fini()
	}
}

// Spawn starts entry(arg) as a new thread.
func Spawn(entry func(any) any, arg any) *Thread {
	if rt := current.Load(); rt != nil {
		return rt.Spawn(entry, arg)
	}
	th := newThread(nil)
	Genuine().Spawn(func() {
		th.ret = entry(arg)
		close(th.done)
	})
	return th
}

// Join waits for th and returns its entry's result.
func Join(th *Thread) any {
	if rt := current.Load(); rt != nil {
		return rt.Join(th)
	}
	Genuine().Join(th.done)
	return th.ret
}

// Lock acquires m.
func Lock(m *sync.Mutex) {
	if rt := current.Load(); rt != nil {
		rt.Lock(m)
		return
	}
	Genuine().Lock(m)
}

// Unlock releases m.
func Unlock(m *sync.Mutex) {
	if rt := current.Load(); rt != nil {
		rt.Unlock(m)
		return
	}
	Genuine().Unlock(m)
}

// Yield gives another thread a chance to run.
func Yield() {
	if rt := current.Load(); rt != nil {
		rt.Yield()
		return
	}
	Genuine().Yield()
}
