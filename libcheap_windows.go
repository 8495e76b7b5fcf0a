//go:build windows

package heapstack

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// LibcHeap is a leaf heap over the C runtime allocator. On windows the
// msvcrt entry points are resolved lazily from the system DLL, keeping
// this heap independent of whatever the process has interposed.
type LibcHeap struct {
	malloc *windows.LazyProc
	free   *windows.LazyProc
	msize  *windows.LazyProc

	mu   sync.Mutex
	live map[unsafe.Pointer]struct{}
}

// NewLibcHeap binds malloc, free and _msize from msvcrt.dll.
func NewLibcHeap() (*LibcHeap, error) {
	dll := windows.NewLazySystemDLL("msvcrt.dll")
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("heapstack: load msvcrt.dll: %w", err)
	}

	h := &LibcHeap{
		malloc: dll.NewProc("malloc"),
		free:   dll.NewProc("free"),
		msize:  dll.NewProc("_msize"),
		live:   make(map[unsafe.Pointer]struct{}),
	}
	for _, proc := range []*windows.LazyProc{h.malloc, h.free, h.msize} {
		if err := proc.Find(); err != nil {
			return nil, fmt.Errorf("heapstack: resolve %s: %w", proc.Name, err)
		}
	}
	return h, nil
}

var _ Heap = (*LibcHeap)(nil)

func (h *LibcHeap) Alloc(size uintptr) unsafe.Pointer {
	if size == 0 {
		size = 1
	}
	addr, _, _ := h.malloc.Call(size)
	if addr == 0 {
		return nil
	}
	ptr := unsafe.Pointer(addr)
	h.mu.Lock()
	h.live[ptr] = struct{}{}
	h.mu.Unlock()
	return ptr
}

func (h *LibcHeap) Free(ptr unsafe.Pointer) {
	h.mu.Lock()
	delete(h.live, ptr)
	h.mu.Unlock()
	h.free.Call(uintptr(ptr))
}

func (h *LibcHeap) SizeOf(ptr unsafe.Pointer) uintptr {
	size, _, _ := h.msize.Call(uintptr(ptr))
	return size
}

func (h *LibcHeap) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ptr := range h.live {
		h.free.Call(uintptr(ptr))
	}
	h.live = make(map[unsafe.Pointer]struct{})
}

func (h *LibcHeap) Alignment() uintptr { return libcAlignment }

const libcAlignment = 16
