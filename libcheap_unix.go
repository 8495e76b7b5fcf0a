//go:build darwin || linux

package heapstack

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// LibcHeap is a leaf heap over the platform C allocator, reached through
// symbols resolved at runtime rather than anything statically linked.
// When allocator layers are interposed over the process malloc, resolving
// dynamically keeps this heap pointed at the real libc implementation.
type LibcHeap struct {
	malloc     func(uintptr) unsafe.Pointer
	free       func(unsafe.Pointer)
	usableSize func(unsafe.Pointer) uintptr

	mu   sync.Mutex
	live map[unsafe.Pointer]struct{}
}

// NewLibcHeap loads the C library and binds malloc, free and the usable
// size query. It fails if any of the three symbols cannot be resolved.
func NewLibcHeap() (*LibcHeap, error) {
	handle, err := purego.Dlopen(libcPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("heapstack: load %s: %w", libcPath, err)
	}

	h := &LibcHeap{live: make(map[unsafe.Pointer]struct{})}
	for _, bind := range []struct {
		name string
		fptr interface{}
	}{
		{"malloc", &h.malloc},
		{"free", &h.free},
		{usableSizeSym, &h.usableSize},
	} {
		sym, err := purego.Dlsym(handle, bind.name)
		if err != nil {
			return nil, fmt.Errorf("heapstack: resolve %s: %w", bind.name, err)
		}
		purego.RegisterFunc(bind.fptr, sym)
	}
	return h, nil
}

var _ Heap = (*LibcHeap)(nil)

func (h *LibcHeap) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}
	ptr := h.malloc(size)
	if ptr == nil {
		return nil
	}
	h.mu.Lock()
	h.live[ptr] = struct{}{}
	h.mu.Unlock()
	return ptr
}

func (h *LibcHeap) Free(ptr unsafe.Pointer) {
	h.mu.Lock()
	delete(h.live, ptr)
	h.mu.Unlock()
	h.free(ptr)
}

func (h *LibcHeap) SizeOf(ptr unsafe.Pointer) uintptr {
	return h.usableSize(ptr)
}

func (h *LibcHeap) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ptr := range h.live {
		h.free(ptr)
	}
	h.live = make(map[unsafe.Pointer]struct{})
}

func (h *LibcHeap) Alignment() uintptr { return libcAlignment }

// libcAlignment matches malloc's max_align_t guarantee on every platform
// this heap builds for.
const libcAlignment = 16
