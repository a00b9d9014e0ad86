package goroutine

import (
	"testing"
)

// TestRegistry_SequentialTIDs verifies TIDs start at 1 and follow creation order.
func TestRegistry_SequentialTIDs(t *testing.T) {
	reg := NewRegistry()

	for i := 1; i <= 5; i++ {
		rec := reg.Add(None)
		if rec.ID != TID(i) {
			t.Errorf("record %d: ID = %d", i, rec.ID)
		}
		if rec.State() != Spawned {
			t.Errorf("record %d: state = %v, want Spawned", i, rec.State())
		}
	}

	recs := reg.Records()
	if len(recs) != 5 {
		t.Fatalf("Records() returned %d records, want 5", len(recs))
	}
	for i, rec := range recs {
		if rec.ID != TID(i+1) {
			t.Errorf("Records()[%d].ID = %d", i, rec.ID)
		}
	}
}

// TestRegistry_Bind verifies goroutine binding and lookup.
func TestRegistry_Bind(t *testing.T) {
	reg := NewRegistry()
	rec := reg.Add(None)

	if _, ok := reg.ByGoroutine(42); ok {
		t.Fatal("unbound goroutine found")
	}
	if err := reg.Bind(rec, 42); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, ok := reg.ByGoroutine(42)
	if !ok || got != rec {
		t.Errorf("ByGoroutine(42) = %v, %v", got, ok)
	}
	if rec.GID() != 42 {
		t.Errorf("GID = %d, want 42", rec.GID())
	}

	// Rebinding the same pair is harmless.
	if err := reg.Bind(rec, 42); err != nil {
		t.Errorf("rebind same record: %v", err)
	}

	// A second record may not steal the goroutine.
	other := reg.Add(rec.ID)
	if err := reg.Bind(other, 42); err == nil {
		t.Error("expected error binding goroutine 42 twice")
	}
}

func TestRegistry_LookupAndLive(t *testing.T) {
	reg := NewRegistry()
	a := reg.Add(None)
	b := reg.Add(a.ID)

	if got, ok := reg.Lookup(b.ID); !ok || got != b {
		t.Errorf("Lookup(%d) = %v, %v", b.ID, got, ok)
	}
	if _, ok := reg.Lookup(99); ok {
		t.Error("Lookup(99) found a record")
	}
	if b.Parent != a.ID {
		t.Errorf("Parent = %d, want %d", b.Parent, a.ID)
	}

	if reg.Live() != 2 {
		t.Errorf("Live = %d, want 2", reg.Live())
	}
	b.SetState(Terminated)
	if reg.Live() != 1 {
		t.Errorf("Live after termination = %d, want 1", reg.Live())
	}
	if reg.Len() != 2 {
		t.Errorf("Len = %d, want 2 (records are never removed)", reg.Len())
	}
}

// TestRecord_Enabled covers the enabled predicate for every state.
func TestRecord_Enabled(t *testing.T) {
	reg := NewRegistry()
	target := reg.Add(None)
	target.SetState(RunnableIdle)

	tests := []struct {
		name  string
		setup func(r *Record)
		want  bool
	}{
		{"spawned", func(r *Record) {}, false},
		{"idle", func(r *Record) { r.SetState(RunnableIdle) }, true},
		{"terminated", func(r *Record) { r.SetState(Terminated) }, false},
		{"join on live target", func(r *Record) { r.Block(target, RunnableBlockedOnJoin) }, false},
		{"blocked without blocker", func(r *Record) { r.SetState(RunnableBlockedOnLock) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reg.Add(None)
			tt.setup(r)
			if got := r.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v (state %v)", got, tt.want, r.State())
			}
		})
	}
}

// TestRecord_JoinBlocker verifies a joiner is released by target termination.
func TestRecord_JoinBlocker(t *testing.T) {
	reg := NewRegistry()
	target := reg.Add(None)
	target.SetState(RunnableIdle)
	joiner := reg.Add(None)

	joiner.Block(target, RunnableBlockedOnJoin)
	if joiner.Blocker() != Blocker(target) {
		t.Fatalf("Blocker = %v, want %v", joiner.Blocker(), target)
	}
	if joiner.Blocker().Owner() != target.ID {
		t.Errorf("Owner = %d, want %d", joiner.Blocker().Owner(), target.ID)
	}
	if joiner.Enabled() {
		t.Error("joiner enabled before target terminated")
	}

	target.SetState(Terminated)
	if !joiner.Enabled() {
		t.Error("joiner not enabled after target terminated")
	}

	joiner.Unblock()
	if joiner.State() != RunnableIdle || joiner.Blocker() != nil {
		t.Errorf("after Unblock: state %v, blocker %v", joiner.State(), joiner.Blocker())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Spawned:               "Spawned",
		RunnableIdle:          "RunnableIdle",
		RunnableBlockedOnLock: "RunnableBlockedOnLock",
		RunnableBlockedOnJoin: "RunnableBlockedOnJoin",
		Terminated:            "Terminated",
		State(42):             "State(42)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(s), got, want)
		}
	}
}
