package heapstack

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// reentrantMutex is a mutual-exclusion lock that the owning goroutine may
// acquire again without deadlocking. TraceHeap needs this: when it stands
// in for the process allocator, formatting a leak report can allocate and
// re-enter the very heap that is mid-report.
type reentrantMutex struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int
}

func (m *reentrantMutex) lock() {
	gid := goid.Get()
	if m.owner.Load() == gid {
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(gid)
	m.depth = 1
}

func (m *reentrantMutex) unlock() {
	if m.owner.Load() != goid.Get() {
		panic("heapstack: unlock of mutex held by another goroutine")
	}
	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		m.mu.Unlock()
	}
}
