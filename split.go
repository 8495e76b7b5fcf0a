package heapstack

import (
	"unsafe"

	"github.com/phuslu/log"
)

// SplitHeap routes allocation requests by size: requests up to the
// threshold go to the small heap, bigger ones to the big heap. No tag is
// stored per allocation; Free and SizeOf recover the owner by probing the
// small heap's reported size. That probe is a load-bearing contract: the
// small heap must never report a size above the threshold for a pointer
// it actually owns, and must report above it (or a sentinel) for foreign
// pointers. PoolHeap upholds this; see its SizeOf.
type SplitHeap struct {
	small     Heap
	big       Heap
	threshold uintptr
	alignment uintptr
}

// NewSplitHeap builds a size-routing heap. threshold must be positive;
// the composite alignment is the greatest common divisor of the two
// nested alignments, the strongest guarantee both sides can keep.
func NewSplitHeap(threshold uintptr, small, big Heap) *SplitHeap {
	if threshold == 0 {
		panic("split threshold must be positive")
	}
	if small == nil || big == nil {
		panic("nested heap cannot be nil")
	}
	return &SplitHeap{
		small:     small,
		big:       big,
		threshold: threshold,
		alignment: gcd(small.Alignment(), big.Alignment()),
	}
}

var _ Heap = (*SplitHeap)(nil)

// Threshold reports the routing boundary: requests of exactly this size
// still go to the small heap.
func (h *SplitHeap) Threshold() uintptr { return h.threshold }

func (h *SplitHeap) Alloc(size uintptr) unsafe.Pointer {
	var ptr unsafe.Pointer
	var owner Heap
	if size <= h.threshold {
		ptr, owner = h.small.Alloc(size), h.small
	} else {
		ptr, owner = h.big.Alloc(size), h.big
	}
	if ptr == nil {
		return nil
	}
	// A nested heap handing back an undersized or misaligned block has
	// broken its own contract; that is a bug, not a runtime condition.
	if got := owner.SizeOf(ptr); got < size {
		log.Panic().
			Uint64("requested", uint64(size)).
			Uint64("reported", uint64(got)).
			Msg("nested heap returned undersized block")
	}
	if uintptr(ptr)%h.alignment != 0 {
		log.Panic().
			Uint64("addr", uint64(uintptr(ptr))).
			Uint64("alignment", uint64(h.alignment)).
			Msg("nested heap returned misaligned block")
	}
	return ptr
}

func (h *SplitHeap) Free(ptr unsafe.Pointer) {
	if h.small.SizeOf(ptr) <= h.threshold {
		h.small.Free(ptr)
	} else {
		h.big.Free(ptr)
	}
}

func (h *SplitHeap) SizeOf(ptr unsafe.Pointer) uintptr {
	if sz := h.small.SizeOf(ptr); sz <= h.threshold {
		return sz
	}
	return h.big.SizeOf(ptr)
}

func (h *SplitHeap) Reset() {
	h.big.Reset()
	h.small.Reset()
}

func (h *SplitHeap) Alignment() uintptr { return h.alignment }
