package state

import (
	"sync"
)

// Memory is an in-process Store. It keeps the raw text so that tests can
// inject malformed content.
type Memory struct {
	mu      sync.Mutex
	raw     string
	present bool
	saves   int
}

// NewMemory returns an empty store; Load reports ErrMissing until the
// first Save.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith returns a store holding e.
func NewMemoryWith(e Exploration) *Memory {
	return &Memory{raw: e.String(), present: true}
}

// Load parses the stored text.
func (m *Memory) Load() (Exploration, error) {
	m.mu.Lock()
	raw, present := m.raw, m.present
	m.mu.Unlock()

	if !present {
		return Exploration{}, ErrMissing
	}
	return Parse(raw)
}

// Save replaces the stored text with e.
func (m *Memory) Save(e Exploration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = e.String()
	m.present = true
	m.saves++
	return nil
}

// SetRaw stores s verbatim.
func (m *Memory) SetRaw(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw = s
	m.present = true
}

// Raw returns the stored text and whether anything is stored.
func (m *Memory) Raw() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.raw, m.present
}

// Saves returns the number of Save calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
