package heapstack_test

import (
	"os"

	"go.yuchanns.xyz/heapstack"
)

// Size routing with leak tracking stacked on top: small requests land in
// a pool, big ones in the general heap, and every live block carries the
// call stack that created it.
func Example() {
	split := heapstack.NewSplitHeap(256,
		heapstack.NewPoolHeap(256, 64),
		heapstack.NewMemHeap(),
	)
	heap := heapstack.NewTraceHeap(split)
	defer heap.Reset()

	buf := heap.Alloc(40)
	defer heap.Free(buf)

	heap.ReportLeaks(os.Stderr)
}
