// Package heapstack is a toolkit of composable memory-allocator layers.
// Each layer is a complete allocator over raw memory and wraps another
// allocator to add behavior: size-class routing, leak tracking with call
// stacks, pooling. Layers nest arbitrarily because every one of them
// satisfies the same Heap interface.
package heapstack

import (
	"unsafe"
)

// Heap is the capability every allocator layer provides. Alloc returns nil
// when the heap is exhausted; callers must check. Free and SizeOf accept
// only pointers previously returned by Alloc on the same instance and not
// yet freed — anything else is undefined, as with the C heap.
type Heap interface {
	// Alloc returns a block of at least size bytes, or nil.
	Alloc(size uintptr) unsafe.Pointer

	// Free releases a live block.
	Free(ptr unsafe.Pointer)

	// SizeOf reports the usable size of a live block. It may exceed the
	// size originally requested, never undercut it.
	SizeOf(ptr unsafe.Pointer) uintptr

	// Reset releases every outstanding allocation at once.
	Reset()

	// Alignment is the alignment guaranteed for every returned pointer.
	// It is constant for the lifetime of the instance.
	Alignment() uintptr
}
