package api

import (
	"fmt"
	"sync"

	"v.io/x/lib/vlog"

	"github.com/kolkov/interleave/internal/chess/goroutine"
	"github.com/kolkov/interleave/internal/chess/scheduler"
	"github.com/kolkov/interleave/internal/chess/stackdepot"
	"github.com/kolkov/interleave/internal/chess/state"
	"github.com/kolkov/interleave/internal/chess/syncpoint"
)

// Thread is the handle returned by Spawn.
type Thread struct {
	rec  *goroutine.Record // nil for threads spawned in pass-through mode
	done chan struct{}
	ret  any
}

func newThread(rec *goroutine.Record) *Thread {
	return &Thread{rec: rec, done: make(chan struct{})}
}

// ID returns the thread's TID, or goroutine.None for a thread started
// while no runtime was active.
func (t *Thread) ID() goroutine.TID {
	if t.rec == nil {
		return goroutine.None
	}
	return t.rec.ID
}

// Done is closed when the thread's entry function has returned.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// Options configures a Runtime.
type Options struct {
	// Store holds the exploration state. Nil disables sync point tracking:
	// the runtime still serializes the program but never forces a switch.
	Store state.Store

	// Primitives overrides the genuine implementations. Nil uses Genuine().
	Primitives *Primitives

	// Logger receives diagnostics. Nil silences the runtime.
	Logger *vlog.Logger

	// Session is the driver session ID, only used in log lines.
	Session string

	// TraceSize bounds the scheduler's event ring.
	TraceSize int
}

// Runtime is one instance of the CHESS scheduler together with its
// tracker. Most programs use the process-wide runtime created by Init.
type Runtime struct {
	sched   *scheduler.Scheduler
	tracker *syncpoint.Tracker
	prim    *Primitives
	log     *vlog.Logger
	session string

	finiOnce sync.Once
}

// New builds a runtime. No thread is attached yet; the first goroutine to
// call an operation (or Attach) becomes T1 and receives the token.
func New(opts Options) (*Runtime, error) {
	prim := opts.Primitives
	if prim == nil {
		prim = Genuine()
	} else if err := prim.validate(); err != nil {
		return nil, err
	}

	r := &Runtime{
		prim:    prim,
		log:     opts.Logger,
		session: opts.Session,
	}
	r.sched = scheduler.New(scheduler.Options{Spin: prim.Yield, TraceSize: opts.TraceSize})
	if opts.Store != nil {
		r.tracker = syncpoint.New(opts.Store, r.forcedSwitch, opts.Logger)
	}
	return r, nil
}

// Scheduler exposes the scheduler for inspection.
func (r *Runtime) Scheduler() *scheduler.Scheduler {
	return r.sched
}

// Tracker returns the sync point tracker, or nil if tracking is off.
func (r *Runtime) Tracker() *syncpoint.Tracker {
	return r.tracker
}

// Attach registers the calling goroutine (if needed) and waits until it
// holds the token and the turn.
func (r *Runtime) Attach() goroutine.TID {
	return r.self().ID
}

// self returns the record of the calling goroutine. Unknown goroutines are
// adopted and wait for their turn before self returns.
func (r *Runtime) self() *goroutine.Record {
	gid := getGoroutineID()
	if rec, ok := r.sched.Threads().ByGoroutine(gid); ok {
		return rec
	}

	rec, err := r.sched.Adopt(gid)
	if err != nil {
		r.fatalf("cannot adopt goroutine %d: %v", gid, err)
	}
	r.infof(2, "adopted goroutine %d as T%d", gid, rec.ID)
	r.sched.Park(rec)
	r.sched.Enter(rec)
	return rec
}

// Spawn starts entry(arg) on a new logical thread. The child is registered
// by the caller and parked before Spawn returns; it first runs when the
// token is handed to it.
func (r *Runtime) Spawn(entry func(any) any, arg any) *Thread {
	parent := r.self()
	r.sched.Enter(parent)

	child := r.sched.Spawn(parent)
	th := newThread(child)
	r.prim.Spawn(func() { r.run(th, entry, arg) })
	r.sched.AwaitStart(child)

	r.infof(2, "T%d spawned T%d", parent.ID, child.ID)
	return th
}

// run is the wrapper executed by every spawned goroutine.
func (r *Runtime) run(th *Thread, entry func(any) any, arg any) {
	rec := th.rec
	if err := r.sched.Start(rec, getGoroutineID()); err != nil {
		r.fatalf("cannot start T%d: %v", rec.ID, err)
	}
	r.sched.Park(rec)
	r.sched.Enter(rec)

	th.ret = entry(arg)
	close(th.done)

	r.infof(2, "T%d terminated", rec.ID)
	r.sched.Exit(rec)
}

// Join waits for th to terminate and returns its entry's result.
func (r *Runtime) Join(th *Thread) any {
	if th.rec == nil {
		r.prim.Join(th.done)
		return th.ret
	}

	self := r.self()
	r.sched.Leave(self)
	if th.rec.State() != goroutine.Terminated {
		self.Block(th.rec, goroutine.RunnableBlockedOnJoin)
		r.sched.HandoffBlocked(self)
		r.sched.Park(self)
		self.Unblock()
	}
	r.sched.Enter(self)

	r.prim.Join(th.done)
	return th.ret
}

// Lock acquires m on behalf of the calling thread. The genuine Lock is only
// called once the shadow record names the caller, so it never blocks.
func (r *Runtime) Lock(m *sync.Mutex) {
	self := r.self()
	rec := r.sched.Mutexes().GetOrCreate(m)

	for {
		if h := rec.Holder(); h != goroutine.None && h != self.ID {
			r.sched.Leave(self)
			self.Block(rec, goroutine.RunnableBlockedOnLock)
			r.sched.HandoffBlocked(self)
			r.sched.Park(self)
			r.sched.Enter(self)
		}
		self.Unblock()
		r.checkpoint()

		// A forced switch inside the checkpoint may have let another
		// thread take the mutex.
		if h := rec.Holder(); h == goroutine.None || h == self.ID {
			rec.SetHolder(self.ID)
			break
		}
	}

	r.sched.Record(scheduler.Event{Kind: scheduler.EventGrant, Thread: self.ID, Mutex: rec.ID})
	r.prim.Lock(m)
}

// Unlock releases m. As with sync.Mutex, the caller need not be the
// thread that locked it; the record is cleared either way, but the release
// is a synchronization point only for the recorded holder.
func (r *Runtime) Unlock(m *sync.Mutex) {
	self := r.self()
	r.prim.Unlock(m)

	rec, ok := r.sched.Mutexes().Lookup(m)
	if !ok {
		return
	}
	holder := rec.Holder()
	if holder == goroutine.None {
		return
	}
	rec.Clear()
	r.sched.Record(scheduler.Event{Kind: scheduler.EventRelease, Thread: self.ID, Mutex: rec.ID})
	if holder == self.ID {
		r.checkpoint()
	}
}

// Yield hands the token to the first enabled thread other than the caller
// and waits until it comes back.
func (r *Runtime) Yield() {
	self := r.self()
	r.sched.Leave(self)
	if next, ok := r.sched.Next(self.ID); ok {
		r.sched.Handoff(self.ID, next)
	}
	r.sched.Park(self)
	r.sched.Enter(self)
}

func (r *Runtime) checkpoint() {
	if r.tracker == nil {
		return
	}
	r.tracker.Hit(stackdepot.Capture(1))
}

func (r *Runtime) forcedSwitch() {
	self := r.self()
	r.sched.Record(scheduler.Event{Kind: scheduler.EventSwitch, Thread: self.ID})
	r.Yield()
}

// Fini terminates the calling thread's record (normally the root thread),
// passing the token on, and logs the tracker summary. Only the first call
// has an effect.
func (r *Runtime) Fini() {
	r.finiOnce.Do(func() {
		if r.tracker != nil {
			st := r.tracker.Stats()
			r.infof(1, "session %q: %s mode, %d sync points, state %s", r.session, st.Mode, st.Hits, st.State)
			if st.Switched {
				r.infof(1, "forced switch at sync point %d: %s", st.SwitchAt, stackdepot.Site(st.SwitchSite))
			}
		}
		if rec, ok := r.sched.Threads().ByGoroutine(getGoroutineID()); ok && rec.State() != goroutine.Terminated {
			r.sched.Exit(rec)
		}
		if r.log != nil {
			r.log.FlushLog()
		}
	})
}

func (r *Runtime) infof(level int, format string, args ...any) {
	if r.log != nil {
		r.log.VI(level).Infof(format, args...)
	}
}

func (r *Runtime) fatalf(format string, args ...any) {
	if r.log != nil {
		r.log.Fatalf(format, args...)
	}
	panic(fmt.Sprintf("chess: "+format, args...))
}
