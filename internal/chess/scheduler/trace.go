package scheduler

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/kolkov/interleave/internal/chess/goroutine"
	"github.com/kolkov/interleave/internal/chess/syncshadow"
)

// DefaultTraceSize is the number of events kept by the trace ring.
const DefaultTraceSize = 4096

// EventKind classifies a scheduling event.
type EventKind int

const (
	EventSpawn EventKind = iota + 1
	EventGrant
	EventRelease
	EventHandoff
	EventForward
	EventExit
	EventSwitch
)

func (k EventKind) String() string {
	switch k {
	case EventSpawn:
		return "spawn"
	case EventGrant:
		return "grant"
	case EventRelease:
		return "release"
	case EventHandoff:
		return "handoff"
	case EventForward:
		return "forward"
	case EventExit:
		return "exit"
	case EventSwitch:
		return "switch"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one entry of the scheduling trace.
type Event struct {
	Kind   EventKind
	Thread goroutine.TID

	// Peer is the other thread involved: the child of a spawn, the
	// receiver of a handoff or forward, the nominee of an exit.
	Peer goroutine.TID

	// Mutex is set for grant and release events.
	Mutex syncshadow.MutexID
}

func (e Event) String() string {
	switch e.Kind {
	case EventGrant, EventRelease:
		return fmt.Sprintf("T%d %s M%d", e.Thread, e.Kind, e.Mutex)
	case EventSwitch:
		return fmt.Sprintf("T%d %s", e.Thread, e.Kind)
	default:
		return fmt.Sprintf("T%d %s T%d", e.Thread, e.Kind, e.Peer)
	}
}

// traceRing keeps the most recent events.
type traceRing struct {
	mu      sync.Mutex
	q       *queue.Queue
	cap     int
	dropped int
}

func newTraceRing(capacity int) *traceRing {
	if capacity <= 0 {
		capacity = DefaultTraceSize
	}
	return &traceRing{q: queue.New(), cap: capacity}
}

func (r *traceRing) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.q.Length() >= r.cap {
		r.q.Remove()
		r.dropped++
	}
	r.q.Add(e)
}

func (r *traceRing) events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, r.q.Length())
	for i := range out {
		out[i] = r.q.Get(i).(Event)
	}
	return out
}

func (r *traceRing) droppedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
