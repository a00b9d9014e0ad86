package chess

import (
	internal "github.com/kolkov/interleave/internal/chess/api"
)

// Version information for the interleave runtime.
const (
	// Version is the current version of the runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Strategy names the exploration strategy.
	Strategy string

	// Enabled reports whether a runtime is active (between Init and Fini).
	Enabled bool
}

// GetInfo returns information about the runtime.
//
// Example:
//
//	info := chess.GetInfo()
//	fmt.Printf("interleave %s (%s)\n", info.Version, info.Strategy)
func GetInfo() Info {
	return Info{
		Version:  Version,
		Strategy: "single forced preemption per run",
		Enabled:  internal.Current() != nil,
	}
}
