package explore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"v.io/x/lib/vlog"

	"github.com/kolkov/interleave/internal/chess/state"
)

// ErrCorruptState aborts an exploration whose state file was left corrupt.
var ErrCorruptState = errors.New("exploration state corrupted by target")

// Explorer runs one exploration.
type Explorer struct {
	cfg      Config
	runner   Runner
	log      *vlog.Logger
	progress io.Writer
	session  string
}

// New prepares an exploration. Progress banners go to progress (may be
// nil); diagnostics go to log (may be nil).
func New(cfg Config, runner Runner, log *vlog.Logger, progress io.Writer) *Explorer {
	if progress == nil {
		progress = io.Discard
	}
	return &Explorer{
		cfg:      cfg,
		runner:   runner,
		log:      log,
		progress: &lockedWriter{w: progress},
		session:  uuid.New().String(),
	}
}

// Session returns the session ID passed to every run.
func (e *Explorer) Session() string {
	return e.session
}

// Explore performs the discovery run and one replay run per sync point.
//
// The returned report is non-nil whenever the discovery run was attempted,
// even if an error aborted the exploration later.
func (e *Explorer) Explore(ctx context.Context) (*Report, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		Session: e.session,
		Binary:  e.cfg.Binary,
		Args:    e.cfg.Args,
		Started: time.Now(),
	}
	defer func() { report.Elapsed = time.Since(report.Started) }()

	primary := state.NewFile(e.cfg.StateFile)
	if err := primary.Save(state.Exploration{}); err != nil {
		return nil, fmt.Errorf("failed to initialize state file: %w", err)
	}

	fmt.Fprintf(e.progress, "========== Finding Synchronization Points ==========\n")
	base := e.runner.Run(ctx, Run{Index: 0, StateFile: primary.Path(), Session: e.session})
	base.Index = 0
	base.Reached = true
	report.Baseline = base
	e.infof("discovery run: %s", base.Describe())

	if base.Outcome == Error {
		return report.abort("discovery run failed: " + base.Err), fmt.Errorf("discovery run failed: %s", base.Err)
	}

	st, err := primary.Load()
	switch {
	case errors.Is(err, state.ErrCorrupt):
		return report.abort(err.Error()), fmt.Errorf("%w: %v", ErrCorruptState, err)
	case err != nil:
		return report.abort(err.Error()), fmt.Errorf("failed to read state after discovery: %w", err)
	}
	report.Total = st.Total
	fmt.Fprintf(e.progress, "Found %d synchronization points\n", st.Total)

	if st.Total == 0 {
		return report, nil
	}

	results, err := e.replayAll(ctx, st.Total)
	report.Runs = results
	report.summarize()
	if err != nil {
		return report.abort(err.Error()), err
	}
	return report, nil
}

// replayAll runs indices 1..total with at most cfg.Parallel in flight.
func (e *Explorer) replayAll(ctx context.Context, total int) ([]Result, error) {
	results := make([]Result, total)

	pathFor := func(int) string { return e.cfg.StateFile }
	if e.cfg.Parallel > 1 {
		dir, err := os.MkdirTemp("", "interleave-"+e.session)
		if err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		defer os.RemoveAll(dir)
		pathFor = func(i int) string { return filepath.Join(dir, fmt.Sprintf("syncpts-%d", i)) }
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallel)
	for i := 1; i <= total; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.replay(gctx, pathFor(i), i, total)
			results[i-1] = res
			return err
		})
	}
	err := g.Wait()

	// Runs skipped after an abort are left with a zero Index.
	var ran []Result
	for _, r := range results {
		if r.Index != 0 {
			ran = append(ran, r)
		}
	}
	return ran, err
}

// replay runs the target once with index i.
func (e *Explorer) replay(ctx context.Context, path string, i, total int) (Result, error) {
	store := state.NewFile(path)
	before := state.Exploration{Chosen: i, Total: total}
	if err := store.Save(before); err != nil {
		return Result{Index: i, Outcome: Error, Err: err.Error()}, fmt.Errorf("failed to write state for run %d: %w", i, err)
	}

	fmt.Fprintf(e.progress, "========== Executing program %d/%d ==========\n", i, total)
	res := e.runner.Run(ctx, Run{Index: i, StateFile: path, Session: e.session})
	res.Index = i

	after, err := store.Load()
	switch {
	case errors.Is(err, state.ErrCorrupt):
		return res, fmt.Errorf("%w: after run %d: %v", ErrCorruptState, i, err)
	case err != nil:
		return res, fmt.Errorf("failed to read state after run %d: %w", i, err)
	}

	// The runtime advances the pair at the switch; an unchanged index means
	// the run ended before reaching it. With a single sync point the
	// advanced index equals the old one and the check cannot tell.
	res.Reached = after.Chosen != before.Chosen || total == 1
	if ctxErr := ctx.Err(); ctxErr != nil && res.Outcome == Error {
		return res, ctxErr
	}

	e.infof("run %d/%d: %s", i, total, res.Describe())
	if res.Defect() {
		fmt.Fprintf(e.progress, "Run %d/%d: %s\n", i, total, res.Describe())
	}
	return res, nil
}

func (e *Explorer) infof(format string, args ...any) {
	if e.log != nil {
		e.log.VI(1).Infof(format, args...)
	}
}

// lockedWriter serializes banner writes from parallel workers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
