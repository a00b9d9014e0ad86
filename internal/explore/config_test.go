package explore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kolkov/interleave/internal/chess/state"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explore.yaml")
	data := `binary: ./bin/lockorder
args: ["-n", "2"]
env: ["GOMAXPROCS=1"]
timeout: 3s
parallel: 4
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Binary != "./bin/lockorder" {
		t.Errorf("Binary = %q", cfg.Binary)
	}
	if len(cfg.Args) != 2 || cfg.Args[1] != "2" {
		t.Errorf("Args = %v", cfg.Args)
	}
	if len(cfg.Env) != 1 || cfg.Env[0] != "GOMAXPROCS=1" {
		t.Errorf("Env = %v", cfg.Env)
	}
	if cfg.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", cfg.Timeout)
	}
	if cfg.Parallel != 4 {
		t.Errorf("Parallel = %d, want 4", cfg.Parallel)
	}
	if cfg.StateFile != state.DefaultPath {
		t.Errorf("StateFile = %q, want default %q", cfg.StateFile, state.DefaultPath)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("timeout: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"no binary", Config{}, true},
		{"zero values", Config{Binary: "x"}, false},
		{"negative timeout", Config{Binary: "x", Timeout: -time.Second}, true},
		{"negative parallel", Config{Binary: "x", Parallel: -1}, true},
		{"explicit", Config{Binary: "x", StateFile: "s", Timeout: time.Second, Parallel: 2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if cfg.StateFile == "" || cfg.Timeout <= 0 || cfg.Parallel <= 0 {
				t.Errorf("defaults not filled: %+v", cfg)
			}
		})
	}
}
