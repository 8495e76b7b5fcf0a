package heapstack_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"go.yuchanns.xyz/heapstack"
)

func TestPoolAllocWithinSlot(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	h := heapstack.NewPoolHeap(24, 8)
	defer h.Reset()

	assert.Equal(uintptr(32), h.SlotSize()) // rounded to alignment

	ptr := h.Alloc(24)
	assert.NotNil(ptr)
	assert.Equal(h.SlotSize(), h.SizeOf(ptr))
	assert.Zero(uintptr(ptr) % h.Alignment())

	assert.Nil(h.Alloc(h.SlotSize() + 1))
}

func TestPoolFreeReusesSlot(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	h := heapstack.NewPoolHeap(16, 8)
	defer h.Reset()

	ptr := h.Alloc(16)
	assert.NotNil(ptr)
	h.Free(ptr)

	assert.Equal(ptr, h.Alloc(16))
}

func TestPoolGrowsAcrossChunks(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	h := heapstack.NewPoolHeap(16, 4)
	defer h.Reset()

	seen := make(map[unsafe.Pointer]bool)
	for i := 0; i < 20; i++ {
		ptr := h.Alloc(16)
		assert.NotNil(ptr)
		assert.False(seen[ptr], "slot handed out twice")
		seen[ptr] = true
	}
}

func TestPoolSizeOfForeignPointer(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	h := heapstack.NewPoolHeap(16, 8)
	defer h.Reset()
	other := heapstack.NewMemHeap()
	defer other.Reset()

	foreign := other.Alloc(16)
	assert.NotNil(foreign)

	// Foreign pointers report an impossible size so size-probe routing
	// never mistakes them for pool slots.
	assert.Equal(^uintptr(0), h.SizeOf(foreign))

	owned := h.Alloc(16)
	assert.NotNil(owned)
	assert.Equal(h.SlotSize(), h.SizeOf(owned))
}

func TestPoolReset(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	h := heapstack.NewPoolHeap(16, 4)

	ptr := h.Alloc(16)
	assert.NotNil(ptr)
	h.Reset()

	// Old pointers are no longer owned, and the pool serves fresh slots.
	assert.Equal(^uintptr(0), h.SizeOf(ptr))
	assert.NotNil(h.Alloc(16))
	h.Reset()
}

func TestPoolConstructorContract(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	assert.Panics(func() { heapstack.NewPoolHeap(0, 8) })
	assert.Panics(func() { heapstack.NewPoolHeap(16, 0) })
}
