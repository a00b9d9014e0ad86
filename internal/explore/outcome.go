package explore

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Outcome classifies one run of the target.
type Outcome int

const (
	Clean Outcome = iota
	Crash
	Hang
	Error
)

func (o Outcome) String() string {
	switch o {
	case Clean:
		return "clean"
	case Crash:
		return "crash"
	case Hang:
		return "hang"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalYAML renders the outcome by name.
func (o Outcome) MarshalYAML() (any, error) {
	return o.String(), nil
}

// UnmarshalYAML accepts the names produced by MarshalYAML.
func (o *Outcome) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	for _, c := range []Outcome{Clean, Crash, Hang, Error} {
		if strings.EqualFold(s, c.String()) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", s)
}

// Result describes one run.
type Result struct {
	// Index is the sync point chosen for the run; 0 is the discovery run.
	Index int `yaml:"index"`

	Outcome  Outcome       `yaml:"outcome"`
	ExitCode int           `yaml:"exit_code"`
	Signal   string        `yaml:"signal,omitempty"`
	Duration time.Duration `yaml:"duration"`

	// Reached is false when the run ended before its chosen sync point, so
	// no switch was forced. Always true for the discovery run.
	Reached bool `yaml:"reached"`

	// Hang diagnostics, sampled just before the process was killed.
	Spinning   bool    `yaml:"spinning,omitempty"`
	CPUPercent float64 `yaml:"cpu_percent,omitempty"`
	Threads    int32   `yaml:"threads,omitempty"`

	// Output is the tail of the combined stdout and stderr.
	Output string `yaml:"output,omitempty"`

	// Err explains an Error outcome.
	Err string `yaml:"error,omitempty"`
}

// Defect reports whether the run exposed a bug.
func (r Result) Defect() bool {
	return r.Outcome == Crash || r.Outcome == Hang
}

// Describe returns a short human-readable summary.
func (r Result) Describe() string {
	switch r.Outcome {
	case Clean:
		return "clean"
	case Crash:
		if r.Signal != "" {
			return fmt.Sprintf("crash (%s)", r.Signal)
		}
		return fmt.Sprintf("crash (exit status %d)", r.ExitCode)
	case Hang:
		if r.Spinning {
			return fmt.Sprintf("hang (spinning, %.0f%% cpu)", r.CPUPercent)
		}
		return "hang"
	default:
		return fmt.Sprintf("error (%s)", r.Err)
	}
}
