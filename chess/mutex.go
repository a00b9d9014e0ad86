package chess

import (
	"sync"

	internal "github.com/kolkov/interleave/internal/chess/api"
)

// Mutex is a mutual exclusion lock scheduled by the runtime. The zero
// value is unlocked. A Mutex must not be copied after first use.
//
// Without an active runtime it behaves exactly like sync.Mutex.
type Mutex struct {
	m sync.Mutex
}

var _ sync.Locker = (*Mutex)(nil)

// Lock acquires the mutex. When it is held by another thread the caller
// hands the scheduling token to the holder and waits.
func (m *Mutex) Lock() {
	internal.Lock(&m.m)
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() {
	internal.Unlock(&m.m)
}
