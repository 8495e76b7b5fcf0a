package heapstack

import (
	"sync"
	"unsafe"

	"github.com/smasher164/mem"
)

// memAlignment is what mem.Alloc guarantees on every supported platform.
const memAlignment = 16

// MemHeap is a general-purpose leaf heap over off-Go-heap memory. It
// keeps a size registry so SizeOf and Reset can honor the Heap contract;
// the registry is the only state, there is no allocation algorithm of its
// own.
type MemHeap struct {
	mu    sync.Mutex
	sizes map[unsafe.Pointer]uintptr
}

func NewMemHeap() *MemHeap {
	return &MemHeap{sizes: make(map[unsafe.Pointer]uintptr)}
}

var _ Heap = (*MemHeap)(nil)

func (h *MemHeap) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}
	ptr := mem.Alloc(uint(size))
	if ptr == nil {
		return nil
	}
	h.mu.Lock()
	h.sizes[ptr] = size
	h.mu.Unlock()
	return ptr
}

func (h *MemHeap) Free(ptr unsafe.Pointer) {
	h.mu.Lock()
	delete(h.sizes, ptr)
	h.mu.Unlock()
	mem.Free(ptr)
}

func (h *MemHeap) SizeOf(ptr unsafe.Pointer) uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sizes[ptr]
}

func (h *MemHeap) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ptr := range h.sizes {
		mem.Free(ptr)
	}
	h.sizes = make(map[unsafe.Pointer]uintptr)
}

func (h *MemHeap) Alignment() uintptr { return memAlignment }

// Live reports how many allocations are outstanding. Test hook.
func (h *MemHeap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sizes)
}
