//go:build darwin

package heapstack

const (
	libcPath      = "/usr/lib/libSystem.B.dylib"
	usableSizeSym = "malloc_size"
)
