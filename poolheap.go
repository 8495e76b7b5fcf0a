package heapstack

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/smasher164/mem"
)

// poolSlot overlays a freed slot; freed slots chain into a free list
// through their own memory.
type poolSlot struct {
	next *poolSlot
}

// PoolHeap is a leaf heap of fixed-size slots carved from chunks of raw
// memory. Requests up to the slot size are served in O(1) from the free
// list or by bumping into the newest chunk; bigger requests are refused
// with nil. SizeOf answers ownership honestly: the slot size for its own
// pointers, an impossibly large sentinel for everyone else's, which is
// what lets SplitHeap use it as the small side without a per-allocation
// tag.
type PoolHeap struct {
	slotSize  uintptr
	chunkSize uintptr

	mu       sync.Mutex
	chunks   []unsafe.Pointer
	bump     uintptr
	freeList *poolSlot
}

// NewPoolHeap builds a pool of slotsPerChunk slots of slotSize bytes per
// chunk. The slot size is rounded up so every slot keeps the backing
// alignment.
func NewPoolHeap(slotSize uintptr, slotsPerChunk int) *PoolHeap {
	if slotSize == 0 {
		panic("pool slot size must be positive")
	}
	if slotsPerChunk <= 0 {
		panic("pool must hold at least one slot per chunk")
	}
	slotSize = roundUp(slotSize, memAlignment)
	if slotSize < unsafe.Sizeof(poolSlot{}) {
		slotSize = roundUp(unsafe.Sizeof(poolSlot{}), memAlignment)
	}
	return &PoolHeap{
		slotSize:  slotSize,
		chunkSize: slotSize * uintptr(slotsPerChunk),
	}
}

var _ Heap = (*PoolHeap)(nil)

// SlotSize is the usable size of every slot, after rounding.
func (h *PoolHeap) SlotSize() uintptr { return h.slotSize }

func (h *PoolHeap) Alloc(size uintptr) unsafe.Pointer {
	if size > h.slotSize {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if slot := h.freeList; slot != nil {
		h.freeList = slot.next
		slot.next = nil
		return unsafe.Pointer(slot)
	}

	if len(h.chunks) == 0 || h.bump+h.slotSize > h.chunkSize {
		chunk := mem.Alloc(uint(h.chunkSize))
		if chunk == nil {
			return nil
		}
		h.chunks = append(h.chunks, chunk)
		h.bump = 0
	}
	ptr := unsafe.Add(h.chunks[len(h.chunks)-1], h.bump)
	h.bump += h.slotSize
	return ptr
}

func (h *PoolHeap) Free(ptr unsafe.Pointer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	slot := (*poolSlot)(ptr)
	slot.next = h.freeList
	h.freeList = slot
}

func (h *PoolHeap) SizeOf(ptr unsafe.Pointer) uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.owns(ptr) {
		return h.slotSize
	}
	return ^uintptr(0)
}

func (h *PoolHeap) owns(ptr unsafe.Pointer) bool {
	addr := uintptr(ptr)
	for _, chunk := range h.chunks {
		base := uintptr(chunk)
		if addr >= base && addr < base+h.chunkSize {
			return true
		}
	}
	return false
}

func (h *PoolHeap) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, chunk := range h.chunks {
		mem.Free(chunk)
	}
	h.chunks = nil
	h.bump = 0
	h.freeList = nil
}

func (h *PoolHeap) Alignment() uintptr { return memAlignment }

func (h *PoolHeap) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("pool(slot=%d, chunks=%d)", h.slotSize, len(h.chunks))
}
