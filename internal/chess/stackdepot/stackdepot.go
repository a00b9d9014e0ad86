// Package stackdepot records the call sites of synchronization points.
//
// Every grant and release checkpoint captures the caller's stack and keeps
// it in a global depot keyed by an FNV-1a hash of the program counters, so
// each distinct site is stored once. When the tracker forces a context
// switch it keeps only the hash; the site is formatted lazily for logs and
// the exploration summary.
//
// Frames belonging to the scheduler itself and to the Go runtime are hidden when formatting, so the first reported
// frame is the target's own Lock/Unlock call.
//
// Usage:
//
//	hash := stackdepot.Capture(1)
//	...
//	fmt.Println(stackdepot.Site(hash))   // "main.worker at /src/main.go:42"
package stackdepot

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
)

// MaxFrames is the maximum number of frames captured per site. Checkpoints
// sit several frames below user code, so this is larger than a report
// would otherwise need.
const MaxFrames = 16

// internalPrefixes are hidden from formatted stacks.
var internalPrefixes = []string{
	"runtime.",
	"github.com/kolkov/interleave/chess.",
	"github.com/kolkov/interleave/internal/chess/api.",
	"github.com/kolkov/interleave/internal/chess/scheduler.",
	"github.com/kolkov/interleave/internal/chess/syncpoint.",
}

// StackTrace is a captured, fixed-size stack.
type StackTrace struct {
	PC [MaxFrames]uintptr
}

var depot sync.Map // uint64 -> *StackTrace

// Capture records the stack of its caller and returns the hash.
//
// Parameters:
//   - skip: additional frames to drop above Capture's caller (0 keeps it)
//
// Returns:
//   - uint64: depot key, 0 if no frames were available
func Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// 0 = runtime.Callers, 1 = Capture, 2 = caller.
	n := runtime.Callers(2+skip, pcs[:])
	if n == 0 {
		return 0
	}

	hash := hashStack(pcs[:n])
	if _, exists := depot.Load(hash); !exists {
		depot.Store(hash, &StackTrace{PC: pcs})
	}
	return hash
}

// Get returns the trace stored under hash, or nil.
func Get(hash uint64) *StackTrace {
	if hash == 0 {
		return nil
	}
	val, ok := depot.Load(hash)
	if !ok {
		return nil
	}
	return val.(*StackTrace)
}

func hashStack(pcs []uintptr) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, pc := range pcs {
		binary.LittleEndian.PutUint64(buf[:], uint64(pc))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func internal(function string) bool {
	for _, p := range internalPrefixes {
		if strings.HasPrefix(function, p) {
			return true
		}
	}
	return false
}

// frames returns the visible frames of st.
func (st *StackTrace) frames() []runtime.Frame {
	var out []runtime.Frame
	n := 0
	for n < MaxFrames && st.PC[n] != 0 {
		n++
	}
	if n == 0 {
		return nil
	}

	iter := runtime.CallersFrames(st.PC[:n])
	for {
		frame, more := iter.Next()
		if frame.PC != 0 && !internal(frame.Function) {
			out = append(out, frame)
		}
		if !more {
			break
		}
	}
	return out
}

// Format renders the visible frames one per function:
//
//	main.worker()
//	    /path/to/file.go:45
func (st *StackTrace) Format() string {
	if st == nil {
		return "  <unknown>\n"
	}

	var buf strings.Builder
	for _, frame := range st.frames() {
		fmt.Fprintf(&buf, "  %s()\n", frame.Function)
		fmt.Fprintf(&buf, "      %s:%d\n", frame.File, frame.Line)
	}
	if buf.Len() == 0 {
		return "  <runtime internal>\n"
	}
	return buf.String()
}

// Site returns a one-line description of the innermost visible frame.
func Site(hash uint64) string {
	st := Get(hash)
	if st == nil {
		return "<unknown>"
	}
	frames := st.frames()
	if len(frames) == 0 {
		return "<runtime internal>"
	}
	f := frames[0]
	return fmt.Sprintf("%s at %s:%d", f.Function, f.File, f.Line)
}

// Reset clears the depot. Tests only; not safe for concurrent use.
func Reset() {
	depot = sync.Map{}
}

// Len returns the number of unique stacks stored.
func Len() int {
	n := 0
	depot.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
