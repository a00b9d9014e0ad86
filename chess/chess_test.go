package chess

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	internal "github.com/kolkov/interleave/internal/chess/api"
)

// runRoot runs fn between Init and Fini on a fresh goroutine.
func runRoot(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		Init()
		fn()
		Fini()
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		if rt := internal.Current(); rt != nil {
			t.Logf("%s", rt.Scheduler().Dump())
			rt.Scheduler().Halt()
		}
		t.Fatal("program did not finish")
	}
}

// TestMutex_UnderRuntime runs the lock-order program through the public
// API twice: discovery, then the first replay run.
func TestMutex_UnderRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncpts")
	t.Setenv("CHESS_STATE_FILE", path)

	program := func() {
		var a, b Mutex
		child := Go(func() {
			a.Lock()
			b.Lock()
			b.Unlock()
			a.Unlock()
		})
		a.Lock()
		b.Lock()
		b.Unlock()
		a.Unlock()
		Join(child)
	}

	runRoot(t, program)
	if got := readState(t, path); got != "0/8" {
		t.Fatalf("after discovery: state %q, want 0/8", got)
	}

	if err := os.WriteFile(path, []byte("1/8"), 0o644); err != nil {
		t.Fatal(err)
	}
	runRoot(t, program)
	if got := readState(t, path); got != "2/8" {
		t.Errorf("after replay 1: state %q, want 2/8", got)
	}
}

// TestGetInfo_Enabled verifies Info tracks the runtime lifetime.
func TestGetInfo_Enabled(t *testing.T) {
	t.Setenv("CHESS_STATE_FILE", filepath.Join(t.TempDir(), "syncpts"))

	var during bool
	runRoot(t, func() { during = GetInfo().Enabled })
	if !during {
		t.Error("Enabled = false between Init and Fini")
	}
	if GetInfo().Enabled {
		t.Error("Enabled = true after Fini")
	}
}

func TestYield_PassThrough(t *testing.T) {
	// Must not block or panic without a runtime.
	Yield()
}

func readState(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(data))
}
