package syncshadow

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kolkov/interleave/internal/chess/goroutine"
)

// MutexID is the sequential identifier of a shadowed mutex.
type MutexID int

// MutexRecord is the shadow state of one mutex.
type MutexRecord struct {
	// ID is assigned in first-access order, starting at 1.
	ID MutexID

	// Mutex is the genuine mutex. The table keeps it reachable, so its
	// address is never reused for another mutex.
	Mutex *sync.Mutex

	holder atomic.Int64
}

// Holder returns the owning thread, or goroutine.None.
func (m *MutexRecord) Holder() goroutine.TID {
	return goroutine.TID(m.holder.Load())
}

// SetHolder records t as the owner.
func (m *MutexRecord) SetHolder(t goroutine.TID) {
	m.holder.Store(int64(t))
}

// Clear marks the mutex as unheld.
func (m *MutexRecord) Clear() {
	m.holder.Store(int64(goroutine.None))
}

// Held reports whether some thread owns the mutex.
func (m *MutexRecord) Held() bool {
	return m.Holder() != goroutine.None
}

// Cleared implements goroutine.Blocker: a waiter may proceed once the
// mutex is unheld.
func (m *MutexRecord) Cleared() bool {
	return !m.Held()
}

// Owner implements goroutine.Blocker.
func (m *MutexRecord) Owner() goroutine.TID {
	return m.Holder()
}

func (m *MutexRecord) String() string {
	return fmt.Sprintf("M%d(holder=T%d)", m.ID, m.Holder())
}

// Table maps mutexes to their shadow records.
//
// Implementation:
//   - sync.Map keyed by *sync.Mutex for the lookup of known mutexes (the
//     common case: every Lock and Unlock after the first)
//   - a mutex around creation so IDs are handed out sequentially
type Table struct {
	vars sync.Map // *sync.Mutex -> *MutexRecord

	mu   sync.Mutex
	next MutexID
	all  []*MutexRecord
}

// NewTable creates an empty table. The first record gets ID 1.
func NewTable() *Table {
	return &Table{next: 1}
}

// GetOrCreate returns the record for m, creating it if needed.
//
// Parameters:
//   - m: the genuine mutex
//
// Returns:
//   - *MutexRecord: the shadow record (never nil)
func (t *Table) GetOrCreate(m *sync.Mutex) *MutexRecord {
	if val, ok := t.vars.Load(m); ok {
		return val.(*MutexRecord)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Re-check under the creation lock; another thread may have won.
	if val, ok := t.vars.Load(m); ok {
		return val.(*MutexRecord)
	}
	rec := &MutexRecord{ID: t.next, Mutex: m}
	t.next++
	t.all = append(t.all, rec)
	t.vars.Store(m, rec)
	return rec
}

// Lookup returns the record for m without creating one.
func (t *Table) Lookup(m *sync.Mutex) (*MutexRecord, bool) {
	val, ok := t.vars.Load(m)
	if !ok {
		return nil, false
	}
	return val.(*MutexRecord), true
}

// Len returns the number of shadowed mutexes.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.all)
}

// Records returns every record ordered by ID.
func (t *Table) Records() []*MutexRecord {
	t.mu.Lock()
	out := make([]*MutexRecord, len(t.all))
	copy(out, t.all)
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HeldBy returns the records currently owned by t, ordered by ID.
func (t *Table) HeldBy(tid goroutine.TID) []*MutexRecord {
	var out []*MutexRecord
	for _, rec := range t.Records() {
		if rec.Holder() == tid {
			out = append(out, rec)
		}
	}
	return out
}
