// run.go implements the 'interleave run' command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/kolkov/interleave/internal/chess/state"
	"github.com/kolkov/interleave/internal/explore"
)

// runCommand implements the 'interleave run' command.
//
// The command instruments and builds Go source files, then runs the
// program once under the chess scheduler. Without -index the state file
// decides what the run does: a missing or 0/T file starts a discovery run,
// anything else replays the schedule it names. With -index i the command
// writes i/T to the state file first (running discovery before it if T is
// not known yet), which reproduces run i of 'interleave explore'.
//
// Exit status is the program's own; 1 for a hang or a command error, 2
// when the state file is corrupt.
//
// Example:
//
//	interleave run main.go
//	interleave run -index 3 main.go arg1 arg2
//	interleave run -state /tmp/syncpts -timeout 5s -tags debug main.go
func runCommand(args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := runInstrumented(ctx, args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

// runOptions is the parsed 'interleave run' command line.
type runOptions struct {
	build *buildConfig

	// args are passed to the program.
	args []string

	stateFile string
	index     int
	timeout   time.Duration
}

// parseRunArgs splits the command line into run flags, go build flags,
// source files and program arguments:
//
//	interleave run [-state f] [-index i] [-timeout d] [-v] [build flags] files.go... [args...]
//
// The first argument after the sources that is not a .go file starts the
// program arguments.
func parseRunArgs(args []string) (*runOptions, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	opts := &runOptions{
		build:     &buildConfig{workDir: cwd},
		stateFile: state.DefaultPath,
		timeout:   explore.DefaultTimeout,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(opts.build.sourceFiles) > 0 && filepath.Ext(arg) != ".go" {
			opts.args = args[i:]
			break
		}
		if filepath.Ext(arg) == ".go" {
			opts.build.sourceFiles = append(opts.build.sourceFiles, arg)
			continue
		}
		if !strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("%s is not a Go source file", arg)
		}

		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "-state", "-index", "-timeout":
			if !hasValue {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("%s flag requires an argument", name)
				}
				i++
				value = args[i]
			}
			if err := opts.set(name, value); err != nil {
				return nil, err
			}
		case "-v":
			opts.build.verbose = true
		case "-o":
			return nil, errors.New("-o is not supported by run; use interleave build")
		default:
			opts.build.buildFlags = append(opts.build.buildFlags, arg)
			if needsValue(arg) && i+1 < len(args) {
				i++
				opts.build.buildFlags = append(opts.build.buildFlags, args[i])
			}
		}
	}

	if len(opts.build.sourceFiles) == 0 {
		return nil, errors.New("no Go source files specified")
	}
	return opts, nil
}

func (o *runOptions) set(name, value string) error {
	switch name {
	case "-state":
		o.stateFile = value
	case "-index":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid -index %q: want a sync point number >= 1", value)
		}
		o.index = n
	case "-timeout":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid -timeout %q", value)
		}
		o.timeout = d
	}
	return nil
}

// runInstrumented builds the program and runs it once.
func runInstrumented(ctx context.Context, args []string) (int, error) {
	opts, err := parseRunArgs(args)
	if err != nil {
		return 1, err
	}

	binary, err := buildTemporary(opts.build)
	if err != nil {
		return 1, fmt.Errorf("build failed: %w", err)
	}
	defer os.Remove(binary)

	runner := &explore.ExecRunner{
		Binary:    binary,
		Args:      opts.args,
		Timeout:   opts.timeout,
		Output:    os.Stdout,
		ErrOutput: os.Stderr,
		Stdin:     os.Stdin,
	}
	return runOnce(ctx, runner, opts, os.Stderr)
}

// buildTemporary builds the instrumented code to a temporary binary,
// which the caller removes after the run.
func buildTemporary(config *buildConfig) (string, error) {
	tempBinary, err := os.CreateTemp("", "interleave-run-*.exe")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempBinary.Name()
	_ = tempBinary.Close()

	config.outputFile = tempPath
	if err := buildInstrumented(config); err != nil {
		_ = os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

// runOnce prepares the state file for opts.index, runs the program and
// prints what the run did to stderr. It returns the exit status of the
// command.
func runOnce(ctx context.Context, runner explore.Runner, opts *runOptions, stderr io.Writer) (int, error) {
	store := state.NewFile(opts.stateFile)
	run := explore.Run{StateFile: opts.stateFile}

	before, err := loadState(store)
	if err != nil {
		return 2, err
	}

	if opts.index > 0 {
		if before.Total == 0 {
			fmt.Fprintf(stderr, "========== Finding Synchronization Points ==========\n")
			if err := store.Save(state.Exploration{}); err != nil {
				return 1, err
			}
			res := runner.Run(ctx, run)
			if res.Outcome != explore.Clean {
				return exitStatus(res), fmt.Errorf("discovery run failed: %s", res.Describe())
			}
			if before, err = loadState(store); err != nil {
				return 2, err
			}
		}
		if opts.index > before.Total {
			return 1, fmt.Errorf("index %d out of range: the program has %d synchronization points", opts.index, before.Total)
		}
		before = state.Exploration{Chosen: opts.index, Total: before.Total}
		if err := store.Save(before); err != nil {
			return 1, err
		}
	}

	replay := before.Total > 0
	if replay {
		run.Index = before.Index()
		fmt.Fprintf(stderr, "========== Executing program %d/%d ==========\n", run.Index, before.Total)
	}
	res := runner.Run(ctx, run)

	after, err := loadState(store)
	if err != nil {
		return 2, err
	}
	if replay {
		// The runtime advances the pair when it forces the switch.
		note := ""
		if after.Chosen == before.Chosen && before.Total > 1 {
			note = " (ended before its sync point)"
		}
		fmt.Fprintf(stderr, "Run %d/%d: %s%s\n", run.Index, before.Total, res.Describe(), note)
	} else {
		fmt.Fprintf(stderr, "Discovery run: %s, %d synchronization points\n", res.Describe(), after.Total)
	}

	if res.Outcome == explore.Error {
		return 1, errors.New(res.Err)
	}
	return exitStatus(res), nil
}

// loadState reads the state file. A missing file is the initial 0/0.
func loadState(store state.Store) (state.Exploration, error) {
	st, err := store.Load()
	if errors.Is(err, state.ErrMissing) {
		return state.Exploration{}, nil
	}
	return st, err
}

// exitStatus maps a run to the exit status of the command.
func exitStatus(res explore.Result) int {
	switch {
	case res.Outcome == explore.Clean:
		return 0
	case res.Outcome == explore.Crash && res.ExitCode > 0:
		return res.ExitCode
	default:
		return 1
	}
}
