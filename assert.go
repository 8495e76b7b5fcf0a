package heapstack

import (
	"strings"
	"unsafe"
)

// TestingT is the subset of *testing.T the leak assertions need.
type TestingT interface {
	Errorf(format string, args ...interface{})
	Helper()
}

// AssertNoLeaks fails the test once per live allocation, naming the
// allocating call site.
func (h *TraceHeap) AssertNoLeaks(t TestingT) {
	t.Helper()
	h.ObserveLeaks(func(_ unsafe.Pointer, size uintptr, stack *Callstack) {
		site := "unknown call site"
		if pc, err := stack.Frame(0); err == nil {
			var sb strings.Builder
			Resolve(pc, func(info FrameInfo) bool {
				sb.WriteString(info.Function)
				if info.File != "" {
					sb.WriteString(" ")
					sb.WriteString(info.File)
				}
				return false
			})
			if sb.Len() > 0 {
				site = sb.String()
			}
		}
		t.Errorf("LEAK of %d bytes FROM %s", size, site)
	})
}
