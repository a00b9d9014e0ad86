package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPath is the state file used when none is configured.
const DefaultPath = ".tracksyncpts"

// File stores the exploration pair in a text file.
//
// Save writes a temporary sibling and renames it over the target, so a
// process killed mid-write leaves either the old or the new content.
type File struct {
	path string
}

// NewFile returns a store backed by path.
func NewFile(path string) *File {
	if path == "" {
		path = DefaultPath
	}
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Load reads and parses the file.
func (f *File) Load() (Exploration, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Exploration{}, fmt.Errorf("%s: %w", f.path, ErrMissing)
	}
	if err != nil {
		return Exploration{}, fmt.Errorf("failed to read state file: %w", err)
	}

	e, err := Parse(string(data))
	if err != nil {
		var ce *CorruptError
		if errors.As(err, &ce) {
			ce.Path = f.path
		}
		return Exploration{}, err
	}
	return e, nil
}

// Save overwrites the file with e.
func (f *File) Save(e Exploration) error {
	if !e.Valid() {
		return fmt.Errorf("refusing to save invalid state %s", e)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	name := tmp.Name()

	if _, err := tmp.WriteString(e.String()); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(name, f.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Remove deletes the file. A missing file is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
