package heapstack

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// MaxFrames bounds how many program counters a Callstack snapshot holds.
const MaxFrames = 16

// ErrFrameRange is returned by Callstack.Frame for an index outside the
// captured range.
var ErrFrameRange = errors.New("heapstack: frame index out of range")

// Callstack is a bounded snapshot of the caller's control-flow stack.
// Capture stores raw program counters only; resolving them to names is
// deferred until Resolve or Format. The zero value is an empty stack.
//
// Callstack holds no Go pointers, so it can be embedded in headers that
// live outside the Go heap.
type Callstack struct {
	n      int
	frames [MaxFrames]uintptr
}

// Capture snapshots the current goroutine's stack. skip is the number of
// frames to omit beyond Capture itself, 0 keeping the immediate caller as
// the first frame. Capture performs no allocation, so it is safe on
// allocator hot paths, including re-entrant ones.
func Capture(skip int) (c Callstack) {
	c.n = runtime.Callers(2+skip, c.frames[:])
	return
}

// FrameCount reports how many frames were actually captured.
func (c *Callstack) FrameCount() int { return c.n }

// Frame returns the raw program counter at index i.
func (c *Callstack) Frame(i int) (uintptr, error) {
	if i < 0 || i >= c.n {
		return 0, ErrFrameRange
	}
	return c.frames[i], nil
}

// FrameInfo is a single resolution of a program counter. A PC may resolve
// to several FrameInfos when calls were inlined. Offset is the byte
// distance from the enclosing symbol's entry point and is only set when
// the resolution came from the symbol table rather than debug info.
type FrameInfo struct {
	PC       uintptr
	Module   string
	Function string
	File     string
	Line     int
	Offset   uintptr
}

// Resolve looks one captured program counter up and invokes fn once per
// resolution found, innermost inline frame first. Returning false from fn
// stops the walk. Resolution is best-effort and tiered: full debug
// information first, then nearest-symbol plus offset, and when neither is
// available fn receives the bare PC. Resolve never fails; missing
// information just leaves FrameInfo fields zero.
func Resolve(pc uintptr, fn func(FrameInfo) bool) {
	module := modulePath()

	resolved := false
	frames := runtime.CallersFrames([]uintptr{pc})
	for {
		frame, more := frames.Next()
		if frame.Function != "" || frame.File != "" {
			resolved = true
			info := FrameInfo{
				PC:       pc,
				Module:   module,
				Function: shortFuncName(frame.Function),
				File:     frame.File,
				Line:     frame.Line,
			}
			if !fn(info) {
				return
			}
		}
		if !more {
			break
		}
	}
	if resolved {
		return
	}

	if f := runtime.FuncForPC(pc); f != nil {
		fn(FrameInfo{
			PC:       pc,
			Module:   module,
			Function: shortFuncName(f.Name()),
			Offset:   pc - f.Entry(),
		})
		return
	}

	fn(FrameInfo{PC: pc})
}

// ptrFieldWidth is "0x" plus a 64-bit pointer in hex.
const ptrFieldWidth = 2 + 2*8

// Format renders every captured frame to w, one line per frame: the raw
// address, the owning module in brackets, then function and file:line for
// each resolution found. Extra inline resolutions continue on their own
// indented lines. Frames that resolve to nothing print the address alone.
func (c *Callstack) Format(w io.Writer, indent string) {
	for i := 0; i < c.n; i++ {
		pc := c.frames[i]
		fmt.Fprintf(w, "%s0x%0*x", indent, ptrFieldWidth-2, pc)

		first := true
		Resolve(pc, func(info FrameInfo) bool {
			if first {
				if info.Module != "" {
					fmt.Fprintf(w, " [%s]", normalizePath(info.Module))
				}
			} else {
				fmt.Fprintf(w, "\n%s%*s ...", indent, ptrFieldWidth, "")
			}
			first = false

			if info.Function != "" {
				fmt.Fprintf(w, " %s", info.Function)
				if info.File == "" && info.Offset != 0 {
					fmt.Fprintf(w, "+%d", info.Offset)
				}
			}
			if info.File != "" && info.Line != 0 {
				fmt.Fprintf(w, " %s:%d", normalizePath(info.File), info.Line)
			}
			return true
		})

		fmt.Fprintln(w)
	}
}

var (
	moduleOnce sync.Once
	modulePth  string
)

// modulePath is the path of the running executable, resolved once. Every
// PC the Go runtime can name belongs to it.
func modulePath() string {
	moduleOnce.Do(func() {
		if p, err := os.Executable(); err == nil {
			modulePth = p
		}
	})
	return modulePth
}

// normalizePath makes path relative to the current working directory
// unless the relative form would escape upward, in which case the
// original path wins.
func normalizePath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// shortFuncName trims the import-path directory from a fully qualified
// runtime function name, keeping package.Function. Names without a path
// component pass through unchanged, as do already-shortened ones.
func shortFuncName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}
