package heapstack

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"unsafe"
)

// record is the hidden header TraceHeap places in front of every
// allocation: the call stack captured at Alloc time plus intrusive links
// into the live-allocation list. It contains no Go heap pointers beyond
// links to sibling records, which live in the same nested heap.
type record struct {
	stack Callstack
	prev  *record
	next  *record
}

// TraceHeap wraps a heap and accounts for every live allocation with the
// call stack that created it. The live set can be reported as text or
// walked programmatically at any time. The registry lock is re-entrant:
// if this heap has been installed as the process-wide allocator, the act
// of reporting (formatting, symbol resolution) may allocate and re-enter
// Alloc or Free on the same instance without deadlocking.
type TraceHeap struct {
	super      Heap
	headerSize uintptr

	mu      reentrantMutex
	objects *record
}

// NewTraceHeap wraps super. The header is sized up to a multiple of
// super's alignment so user pointers keep the nested guarantee.
func NewTraceHeap(super Heap) *TraceHeap {
	if super == nil {
		panic("nested heap cannot be nil")
	}
	return &TraceHeap{
		super:      super,
		headerSize: roundUp(unsafe.Sizeof(record{}), super.Alignment()),
	}
}

var _ Heap = (*TraceHeap)(nil)

// traceSkip is how many frames above Alloc the captured stacks start at.
// HEAPSTACK_TRACE_SKIP raises it when allocations funnel through wrapper
// layers whose frames only add noise to leak reports.
var traceSkip = 1

func init() {
	if val, ok := os.LookupEnv("HEAPSTACK_TRACE_SKIP"); ok {
		if n, err := strconv.Atoi(val); err == nil && n >= 1 {
			traceSkip = n
		}
	}
}

func (h *TraceHeap) Alloc(size uintptr) unsafe.Pointer {
	block := h.super.Alloc(size + h.headerSize)
	if block == nil {
		return nil
	}
	rec := (*record)(block)
	rec.prev = nil
	rec.next = nil
	// Capture does not allocate, so a re-entrant path through an
	// interposed allocator cannot recurse from here.
	rec.stack = Capture(traceSkip)
	h.link(rec)
	return unsafe.Add(block, h.headerSize)
}

func (h *TraceHeap) Free(ptr unsafe.Pointer) {
	rec := (*record)(unsafe.Add(ptr, -int(h.headerSize)))
	h.unlink(rec)
	*rec = record{}
	h.super.Free(unsafe.Pointer(rec))
}

func (h *TraceHeap) SizeOf(ptr unsafe.Pointer) uintptr {
	rec := unsafe.Add(ptr, -int(h.headerSize))
	return h.super.SizeOf(rec) - h.headerSize
}

// Reset drops the registry and releases everything in the nested heap.
func (h *TraceHeap) Reset() {
	h.mu.lock()
	h.objects = nil
	h.mu.unlock()
	h.super.Reset()
}

func (h *TraceHeap) Alignment() uintptr { return h.super.Alignment() }

func (h *TraceHeap) link(rec *record) {
	h.mu.lock()
	defer h.mu.unlock()

	rec.prev = nil
	rec.next = h.objects
	if h.objects != nil {
		h.objects.prev = rec
	}
	h.objects = rec
}

func (h *TraceHeap) unlink(rec *record) {
	h.mu.lock()
	defer h.mu.unlock()

	if h.objects == rec {
		h.objects = rec.next
	}
	if rec.prev != nil {
		rec.prev.next = rec.next
	}
	if rec.next != nil {
		rec.next.prev = rec.prev
	}
}

// ClearLeaks empties the live registry without freeing any memory. Call
// it after startup to mark a baseline: only allocations made afterwards
// show up as leaks.
func (h *TraceHeap) ClearLeaks() {
	h.mu.lock()
	h.objects = nil
	h.mu.unlock()
}

// ReportLeaks writes every live allocation to w, newest first: usable
// size, payload address, and the formatted call stack that created it,
// with entries separated by "---". Safe against re-entrant Alloc/Free
// triggered by the write itself.
func (h *TraceHeap) ReportLeaks(w io.Writer) {
	h.mu.lock()
	defer h.mu.unlock()

	any := false
	for rec := h.objects; rec != nil; rec = rec.next {
		if any {
			fmt.Fprintln(w, "---")
		}
		payload := unsafe.Add(unsafe.Pointer(rec), h.headerSize)
		size := h.super.SizeOf(unsafe.Pointer(rec)) - h.headerSize
		fmt.Fprintf(w, "%d byte(s) leaked @ 0x%x\n", size, uintptr(payload))
		rec.stack.Format(w, "  ")
		any = true
	}
}

// ObserveLeaks invokes fn once per live allocation, newest first, with
// the payload pointer, its usable size, and the captured call stack. The
// stack handle is only valid until the allocation is freed.
func (h *TraceHeap) ObserveLeaks(fn func(ptr unsafe.Pointer, size uintptr, stack *Callstack)) {
	h.mu.lock()
	defer h.mu.unlock()

	for rec := h.objects; rec != nil; rec = rec.next {
		payload := unsafe.Add(unsafe.Pointer(rec), h.headerSize)
		fn(payload, h.super.SizeOf(unsafe.Pointer(rec))-h.headerSize, &rec.stack)
	}
}
