// Package state persists exploration progress between runs of a target
// program.
//
// The on-disk format is a single line "<chosen>/<total>" in ASCII decimal.
// chosen is the 1-based synchronization point at which the next run forces
// a context switch (0 means "not chosen yet"); total is the number of
// synchronization points found by the discovery run.
package state

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrCorrupt matches every error caused by malformed state content.
	ErrCorrupt = errors.New("corrupt exploration state")

	// ErrMissing is returned by stores that hold no state yet.
	ErrMissing = errors.New("no exploration state")
)

// Exploration is the persisted (chosen, total) pair.
//
// Invariant: 0 <= Chosen <= Total+1.
type Exploration struct {
	Chosen int `yaml:"chosen"`
	Total  int `yaml:"total"`
}

// String renders the pair in its persisted form.
func (e Exploration) String() string {
	return fmt.Sprintf("%d/%d", e.Chosen, e.Total)
}

// Valid reports whether the pair satisfies the invariant.
func (e Exploration) Valid() bool {
	return e.Total >= 0 && e.Chosen >= 0 && e.Chosen-1 <= e.Total
}

// Index is the synchronization point at which a replay run switches.
// Chosen == 0 is treated as 1.
func (e Exploration) Index() int {
	if e.Chosen < 1 {
		return 1
	}
	return e.Chosen
}

// Advance returns the pair the next replay run should use: Index()+1,
// wrapping to 1 once it passes Total.
func (e Exploration) Advance() Exploration {
	idx := e.Index()
	if idx >= e.Total {
		return Exploration{Chosen: 1, Total: e.Total}
	}
	return Exploration{Chosen: idx + 1, Total: e.Total}
}

// CorruptError describes malformed state content.
type CorruptError struct {
	// Path is the source of the content, empty for in-memory stores.
	Path string

	// Content is the raw text that failed to parse.
	Content string

	// Reason explains what is wrong.
	Reason string
}

func (e *CorruptError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("corrupt exploration state in %s: %s (content %q)", e.Path, e.Reason, e.Content)
	}
	return fmt.Sprintf("corrupt exploration state: %s (content %q)", e.Reason, e.Content)
}

// Is makes errors.Is(err, ErrCorrupt) succeed.
func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

// Parse decodes "<chosen>/<total>". Whitespace around the line is
// ignored; each field must be plain decimal digits, so signs and spaces
// inside the line make the content corrupt.
func Parse(s string) (Exploration, error) {
	raw := s
	s = strings.TrimSpace(s)

	before, after, ok := strings.Cut(s, "/")
	if !ok {
		return Exploration{}, &CorruptError{Content: raw, Reason: "missing '/' delimiter"}
	}

	chosen, err := parseField(before)
	if err != nil {
		return Exploration{}, &CorruptError{Content: raw, Reason: "chosen index: " + err.Error()}
	}
	total, err := parseField(after)
	if err != nil {
		return Exploration{}, &CorruptError{Content: raw, Reason: "total: " + err.Error()}
	}

	e := Exploration{Chosen: chosen, Total: total}
	if !e.Valid() {
		return Exploration{}, &CorruptError{Content: raw, Reason: "values out of range"}
	}
	return e, nil
}

func parseField(f string) (int, error) {
	if f == "" {
		return 0, errors.New("empty")
	}
	for i := 0; i < len(f); i++ {
		if f[i] < '0' || f[i] > '9' {
			return 0, errors.New("not a decimal number")
		}
	}
	n, err := strconv.Atoi(f)
	if err != nil {
		return 0, errors.New("out of range")
	}
	return n, nil
}

// Store loads and saves exploration state.
type Store interface {
	// Load returns the stored pair. Errors match ErrMissing when nothing
	// has been stored and ErrCorrupt when the content is malformed.
	Load() (Exploration, error)

	// Save replaces the stored pair.
	Save(Exploration) error
}
