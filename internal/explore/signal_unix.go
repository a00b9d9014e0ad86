//go:build unix

package explore

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// signalName returns the name of the signal that killed the process
// ("SIGSEGV"), or "" if it exited normally.
func signalName(ps *os.ProcessState) string {
	if ps == nil {
		return ""
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	if name := unix.SignalName(ws.Signal()); name != "" {
		return name
	}
	return ws.Signal().String()
}
