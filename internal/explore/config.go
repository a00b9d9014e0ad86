package explore

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kolkov/interleave/internal/chess/state"
)

// DefaultTimeout bounds a single run of the target.
const DefaultTimeout = 10 * time.Second

// Config describes one exploration.
type Config struct {
	// Binary is the program to run.
	Binary string `yaml:"binary"`

	// Args are passed to every run.
	Args []string `yaml:"args,omitempty"`

	// Env holds extra KEY=VALUE pairs added to the inherited environment.
	Env []string `yaml:"env,omitempty"`

	// StateFile is the state file of the discovery run and, with a single
	// worker, of every replay run.
	StateFile string `yaml:"state_file,omitempty"`

	// Timeout is the wall-clock limit of one run.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Parallel is the number of concurrent replay runs.
	Parallel int `yaml:"parallel,omitempty"`

	// Report is an optional path for the YAML report.
	Report string `yaml:"report,omitempty"`
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() Config {
	return Config{
		StateFile: state.DefaultPath,
		Timeout:   DefaultTimeout,
		Parallel:  1,
	}
}

// LoadConfig reads a YAML configuration file. Fields absent from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration and fills in defaults for zero values.
func (c *Config) Validate() error {
	if c.Binary == "" {
		return errors.New("no binary to explore")
	}
	if c.StateFile == "" {
		c.StateFile = state.DefaultPath
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %v", c.Timeout)
	}
	if c.Parallel == 0 {
		c.Parallel = 1
	}
	if c.Parallel < 0 {
		return fmt.Errorf("invalid parallelism %d", c.Parallel)
	}
	return nil
}
