// build_test.go tests the 'interleave build' command.
package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseBuildArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		sources []string
		flags   []string
		output  string
		verbose bool
	}{
		{"defaults to package dir", nil, []string{"."}, nil, "", false},
		{"files", []string{"main.go", "helper.go"}, []string{"main.go", "helper.go"}, nil, "", false},
		{"output", []string{"-o", "lockorder", "main.go"}, []string{"main.go"}, nil, "lockorder", false},
		{"output equals", []string{"-o=lockorder", "."}, []string{"."}, nil, "lockorder", false},
		{
			name:    "flag values starting with dash",
			args:    []string{"-ldflags", "-s -w", "-gcflags", "-N -l", "-race", "-v", "cmd"},
			sources: []string{"cmd"},
			flags:   []string{"-ldflags", "-s -w", "-gcflags", "-N -l", "-race"},
			verbose: true,
		},
		{
			name:    "flag with equals",
			args:    []string{"-tags=chess", "-mod", "mod", "main.go"},
			sources: []string{"main.go"},
			flags:   []string{"-tags=chess", "-mod", "mod"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := parseBuildArgs(tt.args)
			if err != nil {
				t.Fatalf("parseBuildArgs() error: %v", err)
			}
			if !equalStrings(config.sourceFiles, tt.sources) {
				t.Errorf("sources = %v, want %v", config.sourceFiles, tt.sources)
			}
			if !equalStrings(config.buildFlags, tt.flags) {
				t.Errorf("build flags = %q, want %q", config.buildFlags, tt.flags)
			}
			if config.outputFile != tt.output || config.verbose != tt.verbose {
				t.Errorf("output=%q verbose=%v", config.outputFile, config.verbose)
			}
		})
	}

	if _, err := parseBuildArgs([]string{"main.go", "-o"}); err == nil {
		t.Error("-o without a value accepted")
	}
}

func TestNeedsValue(t *testing.T) {
	for flag, want := range map[string]bool{
		"-ldflags":    true,
		"-tags":       true,
		"-overlay":    true,
		"-tags=chess": false,
		"-race":       false,
		"-trimpath":   false,
		"-ldflags=-s": false,
		"-o":          false,
	} {
		if got := needsValue(flag); got != want {
			t.Errorf("needsValue(%q) = %v, want %v", flag, got, want)
		}
	}
}

func TestWorkspace(t *testing.T) {
	ws, err := createWorkspace()
	if err != nil {
		t.Fatalf("createWorkspace() error: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(ws.dir), "interleave-build-") {
		t.Errorf("workspace dir = %s", ws.dir)
	}
	if info, err := os.Stat(ws.srcDir); err != nil || !info.IsDir() {
		t.Errorf("src dir: %v", err)
	}

	ws.cleanup()
	if _, err := os.Stat(ws.dir); !os.IsNotExist(err) {
		t.Errorf("workspace left behind: %v", err)
	}
	ws.cleanup()
}

func TestCollectGoFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"main.go", "lock.go", "lock_test.go", "notes.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("package main\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.go"), 0o755); err != nil {
		t.Fatal(err)
	}
	empty := t.TempDir()

	tests := []struct {
		name    string
		sources []string
		workDir string
		want    []string
	}{
		{"directory skips tests and subdirs", []string{dir}, "", []string{"lock.go", "main.go"}},
		{"relative to workDir", []string{"."}, dir, []string{"lock.go", "main.go"}},
		{"explicit test file", []string{filepath.Join(dir, "lock_test.go")}, "", []string{"lock_test.go"}},
		{"non-go file", []string{"notes.md"}, dir, nil},
		{"empty directory", []string{empty}, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := collectGoFiles(tt.sources, tt.workDir)
			if err != nil {
				t.Fatalf("collectGoFiles() error: %v", err)
			}
			var names []string
			for _, f := range files {
				if !filepath.IsAbs(f) {
					t.Errorf("%s is not absolute", f)
				}
				names = append(names, filepath.Base(f))
			}
			if !equalStrings(names, tt.want) {
				t.Errorf("files = %v, want %v", names, tt.want)
			}
		})
	}

	if _, err := collectGoFiles([]string{"missing.go"}, dir); err == nil {
		t.Error("missing source accepted")
	}
}

func TestBuildConfig_SourceDir(t *testing.T) {
	tempDir := t.TempDir()
	sub := filepath.Join(tempDir, "cmd")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		sources []string
		want    string
	}{
		{"no sources", nil, tempDir},
		{"relative file", []string{"cmd/main.go"}, sub},
		{"directory", []string{"cmd"}, sub},
		{"absolute file", []string{filepath.Join(sub, "main.go")}, sub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &buildConfig{sourceFiles: tt.sources, workDir: tempDir}
			if got := c.sourceDir(); got != tt.want {
				t.Errorf("sourceDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestInstrumentSources checks that sources land flattened in the
// workspace with goroutines and mutexes routed through the chess package.
func TestInstrumentSources(t *testing.T) {
	dir := t.TempDir()
	src := `package main

import "sync"

var mu sync.Mutex

func main() {
	go work(42)
}

func work(n int) {
	mu.Lock()
	println(n)
	mu.Unlock()
}
`
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	ws, err := createWorkspace()
	if err != nil {
		t.Fatalf("createWorkspace() error: %v", err)
	}
	defer ws.cleanup()

	if err := instrumentSources(&buildConfig{sourceFiles: []string{"."}, workDir: dir}, ws); err != nil {
		t.Fatalf("instrumentSources() error: %v", err)
	}
	out, err := os.ReadFile(filepath.Join(ws.srcDir, "main.go"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`"github.com/kolkov/interleave/chess"`,
		"chess.Mutex",
		"chess.Go(",
		"chess.Init()",
		"defer chess.Fini()",
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("instrumented file missing %q:\n%s", want, out)
		}
	}

	err = instrumentSources(&buildConfig{sourceFiles: []string{t.TempDir()}}, ws)
	if err == nil || !strings.Contains(err.Error(), "no Go source files") {
		t.Errorf("empty package error = %v", err)
	}
}
