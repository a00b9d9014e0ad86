package explore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"

	"github.com/kolkov/interleave/internal/chess/state"
)

// fakeRunner imitates a target built against the chess runtime: the
// discovery run records total sync points, replay runs advance the state.
type fakeRunner struct {
	total   int
	crash   map[int]bool
	hang    map[int]bool
	short   map[int]bool // ends before its sync point
	corrupt map[int]bool // leaves garbage in the state file
	delay   time.Duration

	mu          sync.Mutex
	paths       map[string]bool
	sessions    map[string]bool
	calls       int
	inflight    int
	maxInflight int
}

func newFake(total int) *fakeRunner {
	return &fakeRunner{
		total:    total,
		crash:    map[int]bool{},
		hang:     map[int]bool{},
		short:    map[int]bool{},
		corrupt:  map[int]bool{},
		paths:    map[string]bool{},
		sessions: map[string]bool{},
	}
}

func (f *fakeRunner) Run(ctx context.Context, run Run) Result {
	f.mu.Lock()
	f.calls++
	f.paths[run.StateFile] = true
	f.sessions[run.Session] = true
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	store := state.NewFile(run.StateFile)
	st, err := store.Load()
	if err != nil {
		return Result{Outcome: Error, Err: err.Error()}
	}
	if st.Total == 0 {
		if err := store.Save(state.Exploration{Total: f.total}); err != nil {
			return Result{Outcome: Error, Err: err.Error()}
		}
		return Result{Outcome: Clean}
	}

	i := st.Chosen
	switch {
	case f.corrupt[i]:
		_ = os.WriteFile(run.StateFile, []byte("garbage"), 0o644)
	case !f.short[i]:
		_ = store.Save(st.Advance())
	}

	switch {
	case f.crash[i]:
		return Result{Outcome: Crash, ExitCode: 2}
	case f.hang[i]:
		return Result{Outcome: Hang, ExitCode: -1}
	}
	return Result{Outcome: Clean}
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Binary = "./target"
	cfg.StateFile = filepath.Join(t.TempDir(), "syncpts")
	return cfg
}

func indices(results []Result) []int {
	var out []int
	for _, r := range results {
		out = append(out, r.Index)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestExplore_CrashClassification verifies a crash at one index is reported
// at exactly that index.
func TestExplore_CrashClassification(t *testing.T) {
	fake := newFake(5)
	fake.crash[3] = true

	var progress bytes.Buffer
	report, err := New(testConfig(t), fake, nil, &progress).Explore(context.Background())
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}

	if report.Total != 5 {
		t.Errorf("Total = %d, want 5", report.Total)
	}
	if got := indices(report.Runs); !equalInts(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("run indices = %v", got)
	}
	if !equalInts(report.Crashes, []int{3}) {
		t.Errorf("Crashes = %v, want [3]\n%s", report.Crashes, spew.Sdump(report.Runs))
	}
	for _, r := range report.Runs {
		if r.Index != 3 && r.Outcome != Clean {
			t.Errorf("run %d: %v, want clean", r.Index, r.Outcome)
		}
		if !r.Reached {
			t.Errorf("run %d not reached", r.Index)
		}
	}
	if report.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", report.ExitCode())
	}
	if fake.calls != 6 {
		t.Errorf("runner called %d times, want 6", fake.calls)
	}

	out := progress.String()
	for _, want := range []string{"Finding Synchronization Points", "Executing program 5/5", "Run 3/5: crash"} {
		if !strings.Contains(out, want) {
			t.Errorf("progress missing %q:\n%s", want, out)
		}
	}
}

func TestExplore_NoSyncPoints(t *testing.T) {
	fake := newFake(0)

	report, err := New(testConfig(t), fake, nil, nil).Explore(context.Background())
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if report.Total != 0 || len(report.Runs) != 0 {
		t.Errorf("report = %+v", report)
	}
	if report.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0", report.ExitCode())
	}
	if fake.calls != 1 {
		t.Errorf("runner called %d times, want 1", fake.calls)
	}
}

// TestExplore_HangAndUnreached verifies hangs and short runs are listed.
func TestExplore_HangAndUnreached(t *testing.T) {
	fake := newFake(4)
	fake.hang[2] = true
	fake.short[4] = true

	report, err := New(testConfig(t), fake, nil, nil).Explore(context.Background())
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if !equalInts(report.Hangs, []int{2}) {
		t.Errorf("Hangs = %v, want [2]", report.Hangs)
	}
	if !equalInts(report.Unreached, []int{4}) {
		t.Errorf("Unreached = %v, want [4]", report.Unreached)
	}
	if len(report.Crashes) != 0 {
		t.Errorf("Crashes = %v, want none", report.Crashes)
	}
	if report.ExitCode() != 1 {
		t.Errorf("ExitCode = %d, want 1", report.ExitCode())
	}
}

// TestExplore_CorruptState verifies a corrupted state file aborts.
func TestExplore_CorruptState(t *testing.T) {
	fake := newFake(5)
	fake.corrupt[2] = true

	report, err := New(testConfig(t), fake, nil, nil).Explore(context.Background())
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("Explore error = %v, want ErrCorruptState", err)
	}
	if report == nil || !report.Aborted {
		t.Fatalf("report = %+v, want aborted", report)
	}
	if report.ExitCode() != 2 {
		t.Errorf("ExitCode = %d, want 2", report.ExitCode())
	}
	if fake.calls != 3 {
		t.Errorf("runner called %d times, want 3 (discovery, 1, 2)", fake.calls)
	}
}

type corruptingDiscovery struct{}

func (corruptingDiscovery) Run(_ context.Context, run Run) Result {
	_ = os.WriteFile(run.StateFile, []byte("1-2"), 0o644)
	return Result{Outcome: Clean}
}

func TestExplore_CorruptAfterDiscovery(t *testing.T) {
	_, err := New(testConfig(t), corruptingDiscovery{}, nil, nil).Explore(context.Background())
	if !errors.Is(err, ErrCorruptState) {
		t.Errorf("Explore error = %v, want ErrCorruptState", err)
	}
}

type failingRunner struct{}

func (failingRunner) Run(context.Context, Run) Result {
	return Result{Outcome: Error, Err: "exec format error"}
}

func TestExplore_DiscoveryError(t *testing.T) {
	report, err := New(testConfig(t), failingRunner{}, nil, nil).Explore(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if report == nil || !report.Aborted || report.ExitCode() != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestExplore_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := New(cfg, newFake(1), nil, nil).Explore(context.Background()); err == nil {
		t.Error("expected error for config without binary")
	}
}

// TestExplore_Parallel verifies workers use private state files and the
// report is ordered by index.
func TestExplore_Parallel(t *testing.T) {
	fake := newFake(6)
	fake.crash[2] = true
	fake.crash[5] = true
	fake.delay = 5 * time.Millisecond

	cfg := testConfig(t)
	cfg.Parallel = 3
	report, err := New(cfg, fake, nil, nil).Explore(context.Background())
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}

	if got := indices(report.Runs); !equalInts(got, []int{1, 2, 3, 4, 5, 6}) {
		t.Errorf("run indices = %v", got)
	}
	if !equalInts(report.Crashes, []int{2, 5}) {
		t.Errorf("Crashes = %v, want [2 5]", report.Crashes)
	}
	// Discovery file plus one private file per index.
	if len(fake.paths) != 7 {
		t.Errorf("state files used = %d, want 7", len(fake.paths))
	}
	if fake.maxInflight > 3 {
		t.Errorf("max concurrent runs = %d, want <= 3", fake.maxInflight)
	}
}

func TestExplore_Session(t *testing.T) {
	fake := newFake(2)
	ex := New(testConfig(t), fake, nil, nil)
	report, err := ex.Explore(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := uuid.Parse(ex.Session()); err != nil {
		t.Errorf("session %q is not a UUID: %v", ex.Session(), err)
	}
	if report.Session != ex.Session() {
		t.Errorf("report session = %q, want %q", report.Session, ex.Session())
	}
	if len(fake.sessions) != 1 || !fake.sessions[ex.Session()] {
		t.Errorf("runner saw sessions %v", fake.sessions)
	}
}

func TestExplore_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := newFake(3)
	report, err := New(testConfig(t), fake, nil, nil).Explore(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Explore error = %v, want context.Canceled", err)
	}
	if report == nil || !report.Aborted {
		t.Errorf("report = %+v, want aborted", report)
	}
}
