package explore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/kolkov/interleave/internal/chess/api"
)

// Run identifies one launch of the target.
type Run struct {
	// Index is the chosen sync point; 0 for the discovery run.
	Index int

	// StateFile is the state file the run must use.
	StateFile string

	// Session is the exploration's session ID.
	Session string
}

// Runner launches the target once and classifies the run.
type Runner interface {
	Run(ctx context.Context, run Run) Result
}

const (
	// DefaultTailSize is the number of output bytes kept per run.
	DefaultTailSize = 4096

	// spinThreshold is the CPU usage above which a hung process is
	// considered to be spinning rather than blocked.
	spinThreshold = 50.0

	// sampleInterval is how long CPU usage is measured before a hung
	// process is killed.
	sampleInterval = 200 * time.Millisecond
)

// ExecRunner runs the target as a child process.
type ExecRunner struct {
	Binary  string
	Args    []string
	Env     []string
	Timeout time.Duration

	// Output, if set, receives the child's stdout and stderr as they are
	// produced.
	Output io.Writer

	// ErrOutput, if set, receives the child's stderr instead of Output.
	ErrOutput io.Writer

	// Stdin is the child's standard input. Nil means no input.
	Stdin io.Reader

	// TailSize bounds Result.Output. Defaults to DefaultTailSize.
	TailSize int
}

// NewExecRunner returns a runner for cfg.
func NewExecRunner(cfg Config) *ExecRunner {
	return &ExecRunner{
		Binary:  cfg.Binary,
		Args:    cfg.Args,
		Env:     cfg.Env,
		Timeout: cfg.Timeout,
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, run Run) Result {
	res := Result{Index: run.Index}

	cmd := exec.Command(r.Binary, r.Args...)
	cmd.Env = append(os.Environ(), r.Env...)
	cmd.Env = append(cmd.Env,
		api.EnvStateFile+"="+run.StateFile,
		api.EnvSession+"="+run.Session,
	)

	size := r.TailSize
	if size <= 0 {
		size = DefaultTailSize
	}
	tail := newTailBuffer(size)
	var out, errOut io.Writer = tail, tail
	if r.Output != nil {
		out = io.MultiWriter(tail, r.Output)
		errOut = out
	}
	if r.ErrOutput != nil {
		errOut = io.MultiWriter(tail, r.ErrOutput)
	}
	cmd.Stdin = r.Stdin
	cmd.Stdout = out
	cmd.Stderr = errOut

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.Outcome = Error
		res.Err = fmt.Sprintf("failed to start %s: %v", r.Binary, err)
		return res
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		classifyExit(&res, err)
	case <-timer.C:
		res.Outcome = Hang
		res.CPUPercent, res.Threads = sample(cmd.Process.Pid)
		res.Spinning = res.CPUPercent >= spinThreshold
		_ = cmd.Process.Kill()
		<-done
		res.ExitCode = -1
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		res.Outcome = Error
		res.ExitCode = -1
		res.Err = ctx.Err().Error()
	}

	res.Duration = time.Since(start)
	res.Output = tail.String()
	return res
}

func classifyExit(res *Result, err error) {
	if err == nil {
		res.Outcome = Clean
		return
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		res.Outcome = Error
		res.Err = err.Error()
		return
	}

	res.Outcome = Crash
	res.ExitCode = exitErr.ExitCode()
	res.Signal = signalName(exitErr.ProcessState)
}

// sample measures the CPU usage and thread count of a running process.
// Errors yield zero values: the process may have exited meanwhile.
func sample(pid int) (cpu float64, threads int32) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, 0
	}
	if n, err := p.NumThreads(); err == nil {
		threads = n
	}
	if pct, err := p.Percent(sampleInterval); err == nil {
		cpu = pct
	}
	return cpu, threads
}

// tailBuffer keeps the last n bytes written to it.
type tailBuffer struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

func newTailBuffer(size int) *tailBuffer {
	return &tailBuffer{size: size}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.size; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
