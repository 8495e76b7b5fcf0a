//go:build linux

package heapstack

const (
	libcPath      = "libc.so.6"
	usableSizeSym = "malloc_usable_size"
)
