// Package main implements the interleave CLI tool.
//
// The interleave tool finds concurrency bugs that show up under only a few
// thread interleavings. It works by:
//
//  1. Rewriting Go sources so goroutines, sync.Mutex and runtime.Gosched
//     go through the chess runtime, which runs one thread at a time
//  2. Building the rewritten program
//  3. Running it once to count synchronization points, then once per point
//     with a forced context switch there
//  4. Reporting every run that crashed or hung
//
// Usage:
//
//	interleave build -o lockorder main.go    # Build with the chess runtime
//	interleave run main.go                   # Build and run once
//	interleave run -index 3 main.go          # Reproduce run 3 of explore
//	interleave explore ./lockorder           # Explore every single-switch schedule
package main

import (
	"fmt"
	"os"

	"github.com/kolkov/interleave/chess"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "build":
		buildCommand(os.Args[2:])
	case "run":
		runCommand(os.Args[2:])
	case "explore":
		exploreCommand(os.Args[2:])
	case "version", "--version":
		fmt.Printf("interleave version %s\n", chess.Version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`interleave - systematic interleaving explorer for Go programs

USAGE:
    interleave <command> [arguments]

COMMANDS:
    build      Build a Go program against the chess scheduler
    run        Build and run a Go program once under the scheduler
    explore    Run a built program under every single-preemption schedule
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Build a program
    interleave build -o lockorder main.go

    # Explore its schedules, 5s per run, 4 runs at a time
    interleave explore -timeout 5s -parallel 4 ./lockorder

    # Same, from a config file, with a YAML report
    interleave explore -config explore.yaml -report report.yaml

    # Reproduce run 3 of an exploration, with the program's own output
    interleave run -index 3 main.go

ABOUT:
    The chess runtime serializes the program: exactly one thread runs at a
    time and control changes hands only at synchronization points (spawn,
    join, lock, unlock, yield, exit). A first run counts the points and
    records the count in a state file (.tracksyncpts). Every following run
    reads an index from that file and preempts the running thread at that
    point, so run i explores the schedule with one extra context switch at
    point i. A crash or timeout in run i is reported with its index.

ENVIRONMENT:
    CHESS_STATE_FILE   state file path (default .tracksyncpts)
    CHESS_V            runtime log verbosity
    CHESS_DISABLE      run instrumented programs without the scheduler

`)
}
