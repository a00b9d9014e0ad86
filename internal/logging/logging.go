// Package logging builds the vlog loggers used by the runtime and the
// command line tool.
package logging

import (
	"v.io/x/lib/vlog"
)

// New returns a logger named name that writes to stderr at the given
// verbosity. Levels above 0 enable VI(n) output.
func New(name string, level int) *vlog.Logger {
	l := vlog.NewLogger(name)
	// Configure only fails for a logger that was already configured.
	_ = l.Configure(vlog.LogToStderr(true), vlog.Level(level))
	return l
}

