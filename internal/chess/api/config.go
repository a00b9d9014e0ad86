package api

import (
	"os"
	"strconv"
	"strings"

	"github.com/kolkov/interleave/internal/chess/state"
)

// Environment variables read by Init.
const (
	EnvStateFile = "CHESS_STATE_FILE"
	EnvVerbosity = "CHESS_V"
	EnvDisable   = "CHESS_DISABLE"
	EnvSession   = "CHESS_SESSION"
)

// Config is the in-process runtime configuration.
type Config struct {
	StateFile string
	Verbosity int
	Disabled  bool
	Session   string
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() Config {
	return configFrom(os.Getenv)
}

func configFrom(getenv func(string) string) Config {
	cfg := Config{
		StateFile: state.DefaultPath,
		Session:   getenv(EnvSession),
	}
	if path := strings.TrimSpace(getenv(EnvStateFile)); path != "" {
		cfg.StateFile = path
	}
	if v, err := strconv.Atoi(strings.TrimSpace(getenv(EnvVerbosity))); err == nil && v > 0 {
		cfg.Verbosity = v
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(getenv(EnvDisable))); err == nil {
		cfg.Disabled = b
	}
	return cfg
}
