package heapstack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundUp(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	assert.Equal(uintptr(0), roundUp(0, 16))
	assert.Equal(uintptr(16), roundUp(1, 16))
	assert.Equal(uintptr(16), roundUp(16, 16))
	assert.Equal(uintptr(32), roundUp(17, 16))
	assert.Equal(uintptr(24), roundUp(17, 12))
}

func TestGCD(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	assert.Equal(uintptr(16), gcd(16, 16))
	assert.Equal(uintptr(8), gcd(8, 16))
	assert.Equal(uintptr(4), gcd(8, 12))
	assert.Equal(uintptr(1), gcd(7, 16))
}
