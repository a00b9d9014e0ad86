// Package syncpoint counts synchronization points and forces the one
// context switch of a replay run.
//
// A synchronization point is every mutex grant (checked just before the
// owner is recorded) and every release (checked just after). The tracker
// runs in one of three modes, chosen once from the persisted state:
//
//	Baseline  state missing or total == 0: count every point and persist
//	          (0, count) after each one
//	Replay    state well formed with total > 0: at the chosen point, advance
//	          the persisted pair and yield exactly once
//	Disabled  state corrupt: do nothing, leave the file for the driver
//
// The state is rewritten on every hit, so a run that crashes after the
// switch still leaves the advanced pair behind.
package syncpoint

import (
	"errors"
	"fmt"
	"sync"

	"v.io/x/lib/vlog"

	"github.com/kolkov/interleave/internal/chess/stackdepot"
	"github.com/kolkov/interleave/internal/chess/state"
)

// Mode is the tracker's operating mode.
type Mode int

const (
	Baseline Mode = iota
	Replay
	Disabled
)

func (m Mode) String() string {
	switch m {
	case Baseline:
		return "baseline"
	case Replay:
		return "replay"
	case Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Stats summarizes one process's tracking.
type Stats struct {
	Mode Mode

	// Hits is the number of synchronization points seen by this process.
	Hits int

	// State is the pair last persisted (or loaded, if nothing was saved).
	State state.Exploration

	// Switched is true once the forced switch happened.
	Switched bool

	// SwitchAt is the hit number of the forced switch.
	SwitchAt int

	// SwitchSite is the stackdepot hash of the switch's call site.
	SwitchSite uint64
}

// Tracker counts hits and triggers the forced switch.
type Tracker struct {
	store state.Store
	yield func()
	log   *vlog.Logger

	mu         sync.Mutex
	mode       Mode
	cur        state.Exploration
	hits       int
	switched   bool
	switchAt   int
	switchSite uint64
	saveFailed bool
}

// New loads the persisted state and picks the mode.
//
// Parameters:
//   - store: where the exploration pair lives
//   - yield: invoked once, outside the tracker's lock, at the forced switch
//   - log: destination for mode and switch diagnostics (may be nil)
func New(store state.Store, yield func(), log *vlog.Logger) *Tracker {
	t := &Tracker{store: store, yield: yield, log: log}

	st, err := store.Load()
	switch {
	case errors.Is(err, state.ErrMissing):
		t.mode = Baseline
	case err != nil:
		t.mode = Disabled
		t.errorf("sync point tracking disabled: %v", err)
	case st.Total == 0:
		t.mode = Baseline
	default:
		t.mode = Replay
		t.cur = st
	}

	if t.mode == Baseline {
		t.cur = state.Exploration{}
		t.persist()
	}
	t.infof("sync point tracker in %s mode (state %s)", t.mode, t.cur)
	return t
}

// Mode returns the operating mode.
func (t *Tracker) Mode() Mode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// Hit records a synchronization point at site (a stackdepot hash, 0 if
// unknown). In replay mode the hit matching the chosen index yields.
func (t *Tracker) Hit(site uint64) {
	t.mu.Lock()
	switch t.mode {
	case Disabled:
		t.mu.Unlock()
		return
	case Baseline:
		t.hits++
		t.cur.Total++
		t.persist()
		t.mu.Unlock()
		return
	}

	t.hits++
	fire := !t.switched && t.hits == t.cur.Index()
	if fire {
		t.switched = true
		t.switchAt = t.hits
		t.switchSite = site
		t.cur = t.cur.Advance()
	}
	t.persist()
	t.mu.Unlock()

	if fire {
		t.infof("forcing context switch at sync point %d/%d (%s)", t.switchAt, t.cur.Total, stackdepot.Site(site))
		if t.yield != nil {
			t.yield()
		}
	}
}

// Stats returns a summary of this process's tracking.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Mode:       t.mode,
		Hits:       t.hits,
		State:      t.cur,
		Switched:   t.switched,
		SwitchAt:   t.switchAt,
		SwitchSite: t.switchSite,
	}
}

// persist saves the current pair. Callers hold t.mu (or own t exclusively).
func (t *Tracker) persist() {
	if err := t.store.Save(t.cur); err != nil && !t.saveFailed {
		t.saveFailed = true
		t.errorf("failed to persist exploration state: %v", err)
	}
}

func (t *Tracker) infof(format string, args ...any) {
	if t.log != nil {
		t.log.VI(1).Infof(format, args...)
	}
}

func (t *Tracker) errorf(format string, args ...any) {
	if t.log != nil {
		t.log.Errorf(format, args...)
	}
}
