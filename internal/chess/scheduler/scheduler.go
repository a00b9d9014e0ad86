package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/kolkov/interleave/internal/chess/goroutine"
	"github.com/kolkov/interleave/internal/chess/syncshadow"
)

// Options configures a Scheduler.
type Options struct {
	// Spin is called once per iteration of a park loop. It must give up
	// the processor without touching scheduler state. Defaults to
	// runtime.Gosched.
	Spin func()

	// TraceSize bounds the event ring. Defaults to DefaultTraceSize.
	TraceSize int
}

// Scheduler owns the thread registry, the mutex table, the token and the
// turn.
type Scheduler struct {
	threads *goroutine.Registry
	mutexes *syncshadow.Table

	token atomic.Int64

	turn      sync.Mutex
	owner     atomic.Int64
	active    atomic.Int32
	maxActive atomic.Int32

	halted atomic.Bool
	spin   func()
	trace  *traceRing
}

// New creates a scheduler with empty tables and no token holder.
func New(opts Options) *Scheduler {
	spin := opts.Spin
	if spin == nil {
		spin = runtime.Gosched
	}
	return &Scheduler{
		threads: goroutine.NewRegistry(),
		mutexes: syncshadow.NewTable(),
		spin:    spin,
		trace:   newTraceRing(opts.TraceSize),
	}
}

// Threads returns the thread registry.
func (s *Scheduler) Threads() *goroutine.Registry {
	return s.threads
}

// Mutexes returns the mutex ownership table.
func (s *Scheduler) Mutexes() *syncshadow.Table {
	return s.mutexes
}

// Token returns the thread currently allowed to run.
func (s *Scheduler) Token() goroutine.TID {
	return goroutine.TID(s.token.Load())
}

// Handoff passes the token from the current holder to another thread.
// Handing the token to oneself is a no-op.
func (s *Scheduler) Handoff(from, to goroutine.TID) {
	s.handoff(EventHandoff, from, to)
}

func (s *Scheduler) handoff(kind EventKind, from, to goroutine.TID) {
	if from == to {
		return
	}
	s.token.Store(int64(to))
	s.trace.add(Event{Kind: kind, Thread: from, Peer: to})
}

// Enter acquires the turn for t. It is a no-op if t already owns it.
func (s *Scheduler) Enter(t *goroutine.Record) {
	if s.Owns(t) {
		return
	}
	s.turn.Lock()
	s.owner.Store(int64(t.ID))

	n := s.active.Add(1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
}

// Leave releases the turn if t owns it.
func (s *Scheduler) Leave(t *goroutine.Record) {
	if !s.Owns(t) {
		return
	}
	s.active.Add(-1)
	s.owner.Store(int64(goroutine.None))
	s.turn.Unlock()
}

// Owns reports whether t currently owns the turn.
func (s *Scheduler) Owns(t *goroutine.Record) bool {
	return goroutine.TID(s.owner.Load()) == t.ID
}

// Owner returns the thread owning the turn, or goroutine.None.
func (s *Scheduler) Owner() goroutine.TID {
	return goroutine.TID(s.owner.Load())
}

// MaxConcurrent returns the highest number of simultaneous turn owners
// ever observed. Anything other than 0 or 1 is a scheduler bug.
func (s *Scheduler) MaxConcurrent() int {
	return int(s.maxActive.Load())
}

// Spawn registers a child of parent. The record starts in Spawned.
func (s *Scheduler) Spawn(parent *goroutine.Record) *goroutine.Record {
	child := s.threads.Add(parent.ID)
	s.trace.add(Event{Kind: EventSpawn, Thread: parent.ID, Peer: child.ID})
	return child
}

// Start binds a spawned record to the goroutine executing it and makes it
// runnable.
func (s *Scheduler) Start(t *goroutine.Record, gid int64) error {
	if err := s.threads.Bind(t, gid); err != nil {
		return err
	}
	t.SetState(goroutine.RunnableIdle)
	return nil
}

// AwaitStart spins until the child has left Spawned.
func (s *Scheduler) AwaitStart(child *goroutine.Record) {
	s.spinUntil(func() bool { return child.State() != goroutine.Spawned })
}

// Adopt registers a goroutine that reached the shim without being spawned
// through it. The record is runnable; it claims the token only if no
// thread holds it.
func (s *Scheduler) Adopt(gid int64) (*goroutine.Record, error) {
	rec := s.threads.Add(goroutine.None)
	if err := s.Start(rec, gid); err != nil {
		return nil, err
	}
	s.token.CompareAndSwap(int64(goroutine.None), int64(rec.ID))
	return rec, nil
}

// Next returns the first enabled thread other than self in registry order.
func (s *Scheduler) Next(self goroutine.TID) (goroutine.TID, bool) {
	for _, rec := range s.threads.Records() {
		if rec.ID != self && rec.Enabled() {
			return rec.ID, true
		}
	}
	return goroutine.None, false
}

// Park spins until the token names t and t is enabled. A token received
// while t cannot make progress is forwarded.
func (s *Scheduler) Park(t *goroutine.Record) {
	for {
		s.spinUntil(func() bool { return s.Token() == t.ID })
		if t.Enabled() {
			return
		}
		if to := s.forwardTarget(t); to != t.ID {
			s.handoff(EventForward, t.ID, to)
		}
		s.pause()
	}
}

// HandoffBlocked passes the token away from t, which has just blocked.
// It goes to the thread t waits on if that one is still alive, else to the
// next enabled thread. The token never names a terminated thread; if no
// other thread can run, t keeps it and its park spins (a deadlock).
func (s *Scheduler) HandoffBlocked(t *goroutine.Record) {
	if to := s.forwardTarget(t); to != t.ID {
		s.handoff(EventHandoff, t.ID, to)
	}
}

// forwardTarget picks who should get the token from a thread that cannot
// use it: the thread it waits on if that one is still alive, else the next
// enabled thread, else itself.
func (s *Scheduler) forwardTarget(t *goroutine.Record) goroutine.TID {
	if b := t.Blocker(); b != nil {
		if owner := b.Owner(); owner != goroutine.None && owner != t.ID {
			if rec, ok := s.threads.Lookup(owner); ok && rec.State() != goroutine.Terminated {
				return owner
			}
		}
	}
	if next, ok := s.Next(t.ID); ok {
		return next
	}
	return t.ID
}

// Exit terminates t: it is marked Terminated, the first enabled thread (if
// any) receives the token, and the turn is released.
func (s *Scheduler) Exit(t *goroutine.Record) {
	t.SetState(goroutine.Terminated)
	next, ok := s.Next(t.ID)
	if !ok {
		next = goroutine.None
	}
	s.token.Store(int64(next))
	s.trace.add(Event{Kind: EventExit, Thread: t.ID, Peer: next})
	s.Leave(t)
}

// Record appends an event to the trace.
func (s *Scheduler) Record(e Event) {
	s.trace.add(e)
}

// Trace returns the retained events, oldest first.
func (s *Scheduler) Trace() []Event {
	return s.trace.events()
}

// Dropped returns the number of events evicted from the trace ring.
func (s *Scheduler) Dropped() int {
	return s.trace.droppedCount()
}

// Halt makes every goroutine spinning in this scheduler exit via
// runtime.Goexit. It cannot be undone.
func (s *Scheduler) Halt() {
	s.halted.Store(true)
}

// Halted reports whether Halt was called.
func (s *Scheduler) Halted() bool {
	return s.halted.Load()
}

func (s *Scheduler) spinUntil(cond func() bool) {
	for !cond() {
		s.pause()
	}
}

func (s *Scheduler) pause() {
	if s.halted.Load() {
		runtime.Goexit()
	}
	s.spin()
}
