package explore

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Report summarizes an exploration.
type Report struct {
	Session string   `yaml:"session"`
	Binary  string   `yaml:"binary"`
	Args    []string `yaml:"args,omitempty"`

	// Total is the number of sync points found by the discovery run.
	Total int `yaml:"total"`

	Baseline Result   `yaml:"baseline"`
	Runs     []Result `yaml:"runs,omitempty"`

	// Index lists of defective and ineffective runs.
	Crashes   []int `yaml:"crashes,omitempty"`
	Hangs     []int `yaml:"hangs,omitempty"`
	Errors    []int `yaml:"errors,omitempty"`
	Unreached []int `yaml:"unreached,omitempty"`

	Aborted bool   `yaml:"aborted,omitempty"`
	Reason  string `yaml:"reason,omitempty"`

	Started time.Time     `yaml:"started"`
	Elapsed time.Duration `yaml:"elapsed"`
}

func (r *Report) abort(reason string) *Report {
	r.Aborted = true
	r.Reason = reason
	return r
}

func (r *Report) summarize() {
	r.Crashes, r.Hangs, r.Errors, r.Unreached = nil, nil, nil, nil
	for _, run := range r.Runs {
		switch run.Outcome {
		case Crash:
			r.Crashes = append(r.Crashes, run.Index)
		case Hang:
			r.Hangs = append(r.Hangs, run.Index)
		case Error:
			r.Errors = append(r.Errors, run.Index)
		}
		if !run.Reached {
			r.Unreached = append(r.Unreached, run.Index)
		}
	}
}

// Defects reports whether any run, including discovery, crashed or hung.
func (r *Report) Defects() bool {
	return r.Baseline.Defect() || len(r.Crashes) > 0 || len(r.Hangs) > 0
}

// ExitCode maps the report to the tool's exit status: 0 clean, 1 defects
// found, 2 aborted.
func (r *Report) ExitCode() int {
	switch {
	case r.Aborted:
		return 2
	case r.Defects():
		return 1
	default:
		return 0
	}
}

const (
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiReset  = "\x1b[0m"
)

// WriteText writes the human-readable report. color enables ANSI colors.
func (r *Report) WriteText(w io.Writer, color bool) error {
	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + ansiReset
	}

	var b strings.Builder
	fmt.Fprintf(&b, "========== Crash Report Begin ==========\n")
	fmt.Fprintf(&b, "Session:  %s\n", r.Session)
	fmt.Fprintf(&b, "Program:  %s\n", strings.Join(append([]string{r.Binary}, r.Args...), " "))
	fmt.Fprintf(&b, "Sync points: %d\n", r.Total)
	fmt.Fprintf(&b, "Discovery run: %s\n", r.Baseline.Describe())

	for _, run := range r.Runs {
		if !run.Defect() {
			continue
		}
		line := fmt.Sprintf("%s occurred at synchronization point %d/%d: %s",
			strings.ToUpper(run.Outcome.String()[:1])+run.Outcome.String()[1:], run.Index, r.Total, run.Describe())
		code := ansiRed
		if run.Outcome == Hang {
			code = ansiYellow
		}
		fmt.Fprintf(&b, "%s\n", paint(code, line))
	}

	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "Runs that could not be executed: %v\n", r.Errors)
	}
	if len(r.Unreached) > 0 {
		fmt.Fprintf(&b, "Runs that ended before their sync point: %v\n", r.Unreached)
	}
	if r.Aborted {
		fmt.Fprintf(&b, "%s\n", paint(ansiRed, "Exploration aborted: "+r.Reason))
	}
	if !r.Defects() && !r.Aborted {
		fmt.Fprintf(&b, "%s\n", paint(ansiGreen, "No crash occurred!"))
	} else if r.Defects() {
		fmt.Fprintf(&b, "Crashing indices: %v, hanging indices: %v\n", r.Crashes, r.Hangs)
	}
	fmt.Fprintf(&b, "Elapsed: %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "=========== Crash Report End ===========\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteYAML writes the report to path.
func (r *Report) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReadReport loads a report written by WriteYAML.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}
