package api

import (
	"fmt"
	"os"
	"runtime"
	"sync"
)

// Primitives are the genuine implementations the shim delegates to after
// its scheduling bookkeeping.
type Primitives struct {
	Spawn  func(fn func())
	Join   func(done <-chan struct{})
	Lock   func(m *sync.Mutex)
	Unlock func(m *sync.Mutex)
	Yield  func()
}

// ResolveError reports a genuine primitive that could not be resolved.
type ResolveError struct {
	Name string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("failed to resolve genuine %s implementation", e.Name)
}

func (p *Primitives) validate() error {
	switch {
	case p.Spawn == nil:
		return &ResolveError{Name: "spawn"}
	case p.Join == nil:
		return &ResolveError{Name: "join"}
	case p.Lock == nil:
		return &ResolveError{Name: "lock"}
	case p.Unlock == nil:
		return &ResolveError{Name: "unlock"}
	case p.Yield == nil:
		return &ResolveError{Name: "yield"}
	}
	return nil
}

func native() *Primitives {
	return &Primitives{
		Spawn:  func(fn func()) { go fn() },
		Join:   func(done <-chan struct{}) { <-done },
		Lock:   (*sync.Mutex).Lock,
		Unlock: (*sync.Mutex).Unlock,
		Yield:  runtime.Gosched,
	}
}

var (
	genuineOnce sync.Once
	genuineImpl *Primitives
)

// Genuine returns the process-wide genuine primitives, resolving them on
// first use. A primitive that cannot be resolved aborts the process.
func Genuine() *Primitives {
	genuineOnce.Do(func() {
		p := native()
		if err := p.validate(); err != nil {
			fmt.Fprintf(os.Stderr, "chess: fatal: %v\n", err)
			os.Exit(2)
		}
		genuineImpl = p
	})
	return genuineImpl
}
