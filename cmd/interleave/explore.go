// explore.go implements the 'interleave explore' command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/kolkov/interleave/internal/explore"
	"github.com/kolkov/interleave/internal/logging"
)

// exploreCommand implements the 'interleave explore' command.
//
// The target must be a binary built with 'interleave build'. The command
// runs it once to count synchronization points and once more per point
// with a forced context switch there, then prints the crash report.
//
// Exit status: 0 no defect, 1 crash or hang found, 2 exploration aborted.
//
// Example:
//
//	interleave explore ./lockorder
//	interleave explore -timeout 5s -parallel 4 -report report.yaml ./lockorder -n 2
//	interleave explore -config explore.yaml
func exploreCommand(args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := runExplore(ctx, args, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

// exploreOptions holds the parsed command line.
type exploreOptions struct {
	config    explore.Config
	verbosity int
	echo      bool
}

// parseExploreArgs parses the explore flags. Values from -config are the
// base; flags given explicitly override them, as does a positional binary.
func parseExploreArgs(args []string, stderr io.Writer) (*exploreOptions, error) {
	fs := flag.NewFlagSet("explore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: interleave explore [flags] binary [args...]\n\n")
		fs.PrintDefaults()
	}

	def := explore.DefaultConfig()
	var (
		configPath = fs.String("config", "", "YAML exploration config")
		stateFile  = fs.String("state", def.StateFile, "state file shared with the target")
		timeout    = fs.Duration("timeout", def.Timeout, "time limit of one run; slower runs are hangs")
		parallel   = fs.Int("parallel", def.Parallel, "number of concurrent replay runs")
		report     = fs.String("report", "", "write the YAML report to this file")
		verbosity  = fs.Int("v", 0, "log verbosity")
		echo       = fs.Bool("echo", false, "copy the target's output to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := def
	if *configPath != "" {
		loaded, err := explore.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "state":
			cfg.StateFile = *stateFile
		case "timeout":
			cfg.Timeout = *timeout
		case "parallel":
			cfg.Parallel = *parallel
		case "report":
			cfg.Report = *report
		}
	})

	if rest := fs.Args(); len(rest) > 0 {
		cfg.Binary = rest[0]
		cfg.Args = rest[1:]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &exploreOptions{config: cfg, verbosity: *verbosity, echo: *echo}, nil
}

// runExplore parses args, explores and prints the report to stderr. It
// returns the process exit status.
func runExplore(ctx context.Context, args []string, stderr io.Writer) (int, error) {
	opts, err := parseExploreArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, nil
		}
		return 1, err
	}
	cfg := opts.config

	log := logging.New("interleave", opts.verbosity)
	defer log.FlushLog()

	runner := explore.NewExecRunner(cfg)
	if opts.echo {
		runner.Output = stderr
	}

	ex := explore.New(cfg, runner, log, stderr)
	log.VI(1).Infof("exploring %s (session %s, %d workers)", cfg.Binary, ex.Session(), cfg.Parallel)

	report, exploreErr := ex.Explore(ctx)
	if report == nil {
		return 2, exploreErr
	}

	if err := report.WriteText(stderr, isTerminal(stderr)); err != nil {
		return 2, fmt.Errorf("failed to print report: %w", err)
	}
	if cfg.Report != "" {
		if err := report.WriteYAML(cfg.Report); err != nil {
			return 2, err
		}
	}
	if exploreErr != nil {
		return 2, exploreErr
	}
	return report.ExitCode(), nil
}

// isTerminal reports whether w is a terminal, which enables colors.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
