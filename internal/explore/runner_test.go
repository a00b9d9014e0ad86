package explore

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kolkov/interleave/internal/chess/api"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// TestHelperProcess is not a real test: ExecRunner tests launch the test
// binary itself with GO_WANT_HELPER_PROCESS set.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		os.Exit(0)
	}

	switch args[0] {
	case "clean":
		fmt.Printf("state=%s session=%s\n", os.Getenv(api.EnvStateFile), os.Getenv(api.EnvSession))
		os.Exit(0)
	case "crash":
		fmt.Fprintln(os.Stderr, "panic: boom")
		os.Exit(3)
	case "hang":
		time.Sleep(time.Minute)
	case "echo":
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		fmt.Printf("got %s", line)
		fmt.Fprintln(os.Stderr, "to stderr")
		os.Exit(0)
	case "chatty":
		for i := 0; i < 100; i++ {
			fmt.Printf("line %03d\n", i)
		}
	}
	os.Exit(0)
}

func helperRunner(mode string) *ExecRunner {
	return &ExecRunner{
		Binary:  os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--", mode},
		Env:     []string{"GO_WANT_HELPER_PROCESS=1"},
		Timeout: 10 * time.Second,
	}
}

func TestExecRunner_Clean(t *testing.T) {
	res := helperRunner("clean").Run(context.Background(), Run{Index: 2, StateFile: "/tmp/syncpts-2", Session: "s1"})
	if res.Outcome != Clean {
		t.Fatalf("outcome = %v (%s), output:\n%s", res.Outcome, res.Describe(), res.Output)
	}
	if res.Index != 2 {
		t.Errorf("Index = %d, want 2", res.Index)
	}
	if !strings.Contains(res.Output, "state=/tmp/syncpts-2 session=s1") {
		t.Errorf("environment not passed, output:\n%s", res.Output)
	}
}

func TestExecRunner_Crash(t *testing.T) {
	res := helperRunner("crash").Run(context.Background(), Run{Index: 1})
	if res.Outcome != Crash {
		t.Fatalf("outcome = %v, want crash", res.Outcome)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Output, "panic: boom") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestExecRunner_Hang(t *testing.T) {
	r := helperRunner("hang")
	r.Timeout = 300 * time.Millisecond
	res := r.Run(context.Background(), Run{Index: 1})
	if res.Outcome != Hang {
		t.Fatalf("outcome = %v, want hang", res.Outcome)
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if res.Spinning {
		t.Errorf("sleeping process reported as spinning (%.0f%% cpu)", res.CPUPercent)
	}
}

func TestExecRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res := helperRunner("hang").Run(ctx, Run{Index: 1})
	if res.Outcome != Error {
		t.Fatalf("outcome = %v, want error", res.Outcome)
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := &ExecRunner{Binary: "/nonexistent/target"}
	res := r.Run(context.Background(), Run{})
	if res.Outcome != Error || res.Err == "" {
		t.Errorf("result = %+v, want start error", res)
	}
}

func TestExecRunner_OutputTail(t *testing.T) {
	r := helperRunner("chatty")
	r.TailSize = 18
	var full strings.Builder
	r.Output = &full

	res := r.Run(context.Background(), Run{})
	if res.Outcome != Clean {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if res.Output != "line 098\nline 099\n" {
		t.Errorf("tail = %q", res.Output)
	}
	if !strings.Contains(full.String(), "line 000") {
		t.Error("Output writer did not receive the full stream")
	}
}

// TestExecRunner_Streams verifies stdin is forwarded and stderr can be
// kept apart from stdout.
func TestExecRunner_Streams(t *testing.T) {
	r := helperRunner("echo")
	var stdout, stderr strings.Builder
	r.Output = &stdout
	r.ErrOutput = &stderr
	r.Stdin = strings.NewReader("hello\n")

	res := r.Run(context.Background(), Run{})
	if res.Outcome != Clean {
		t.Fatalf("outcome = %v (%s)", res.Outcome, res.Describe())
	}
	if stdout.String() != "got hello\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
	if stderr.String() != "to stderr\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
	if !strings.Contains(res.Output, "got hello") || !strings.Contains(res.Output, "to stderr") {
		t.Errorf("tail = %q, want both streams", res.Output)
	}
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(5)
	fmt.Fprint(tb, "abc")
	fmt.Fprint(tb, "defg")
	if got := tb.String(); got != "cdefg" {
		t.Errorf("tail = %q, want %q", got, "cdefg")
	}
	fmt.Fprint(tb, "0123456789")
	if got := tb.String(); got != "56789" {
		t.Errorf("tail = %q, want %q", got, "56789")
	}
}
