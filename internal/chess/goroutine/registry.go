package goroutine

import (
	"fmt"
	"sync"
)

// Registry is the append-only table of thread records.
//
// Lookups and insertions take an internal mutex; it is bookkeeping only and
// is never held while a thread waits for its turn.
type Registry struct {
	mu    sync.Mutex
	byID  map[TID]*Record
	byGID map[int64]*Record
	order []*Record
	next  TID
}

// NewRegistry returns an empty registry. The first record gets TID 1.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[TID]*Record),
		byGID: make(map[int64]*Record),
		next:  1,
	}
}

// Add creates a record in state Spawned with the next TID.
func (r *Registry) Add(parent TID) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := newRecord(r.next, parent)
	r.next++
	r.byID[rec.ID] = rec
	r.order = append(r.order, rec)
	return rec
}

// Bind associates a started record with the goroutine running it.
//
// Binding the same goroutine twice is a programming error: goroutine IDs
// are unique for the life of the process.
func (r *Registry) Bind(rec *Record, gid int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if other, ok := r.byGID[gid]; ok && other != rec {
		return fmt.Errorf("goroutine %d already bound to T%d", gid, other.ID)
	}
	rec.gid.Store(gid)
	r.byGID[gid] = rec
	return nil
}

// Lookup returns the record with the given TID.
func (r *Registry) Lookup(id TID) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	return rec, ok
}

// ByGoroutine returns the record bound to goroutine gid.
func (r *Registry) ByGoroutine(gid int64) (*Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byGID[gid]
	return rec, ok
}

// Records returns all records in creation order.
func (r *Registry) Records() []*Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Record, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of records ever created.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Live returns the number of records that have not terminated.
func (r *Registry) Live() int {
	n := 0
	for _, rec := range r.Records() {
		if rec.State() != Terminated {
			n++
		}
	}
	return n
}
