// Package instrument - Positioned diagnostics.
//
// Errors and warnings carry the file position of the offending construct
// and an optional suggestion.
//
// Example output:
//
//	main.go:42:15: sync.WaitGroup is not scheduled by the chess runtime; blocking on it can hang exploration
//
//	Suggestion: join spawned threads with chess.Join instead
package instrument

import (
	"fmt"
	"go/token"
)

// InstrumentationError is an instrumentation diagnostic with a position.
// InstrumentFile returns it as an error for files it cannot rewrite and
// lists it in InstrumentResult.Warnings for constructs it leaves alone.
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type InstrumentationError struct {
	File       string // Source file path
	Line       int    // Line number (1-indexed)
	Column     int    // Column number (1-indexed)
	Message    string // Error message
	Suggestion string // Optional suggestion for fixing (empty if none)
}

// Error implements the error interface.
//
// Format: file:line:column: message, followed by the suggestion on its own
// paragraph when present.
func (e *InstrumentationError) Error() string {
	result := fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	if e.Suggestion != "" {
		result += fmt.Sprintf("\n\nSuggestion: %s", e.Suggestion)
	}
	return result
}

// NewInstrumentationError creates a diagnostic positioned at pos.
func NewInstrumentationError(fset *token.FileSet, pos token.Pos, msg string) *InstrumentationError {
	position := fset.Position(pos)
	return &InstrumentationError{
		File:    position.Filename,
		Line:    position.Line,
		Column:  position.Column,
		Message: msg,
	}
}

// NewInstrumentationErrorWithSuggestion creates a diagnostic with a hint
// for resolving it.
func NewInstrumentationErrorWithSuggestion(fset *token.FileSet, pos token.Pos, msg, suggestion string) *InstrumentationError {
	err := NewInstrumentationError(fset, pos, msg)
	err.Suggestion = suggestion
	return err
}
