package heapstack_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.yuchanns.xyz/heapstack"
)

func TestCaptureFrames(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	c := heapstack.Capture(0)
	assert.Positive(c.FrameCount())
	assert.LessOrEqual(c.FrameCount(), heapstack.MaxFrames)

	pc, err := c.Frame(0)
	assert.NoError(err)
	assert.NotZero(pc)

	var funcs []string
	heapstack.Resolve(pc, func(info heapstack.FrameInfo) bool {
		funcs = append(funcs, info.Function)
		return true
	})
	assert.NotEmpty(funcs)
	assert.Contains(strings.Join(funcs, " "), "TestCaptureFrames")
}

func TestFrameRange(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	c := heapstack.Capture(0)

	_, err := c.Frame(-1)
	assert.ErrorIs(err, heapstack.ErrFrameRange)
	_, err = c.Frame(c.FrameCount())
	assert.ErrorIs(err, heapstack.ErrFrameRange)
	_, err = c.Frame(c.FrameCount() - 1)
	assert.NoError(err)
}

func TestCaptureSkip(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	deep := func() heapstack.Callstack {
		return heapstack.Capture(1)
	}
	c := deep()

	pc, err := c.Frame(0)
	assert.NoError(err)

	// skip=1 drops the closure frame, so the test itself comes first.
	found := false
	heapstack.Resolve(pc, func(info heapstack.FrameInfo) bool {
		if strings.Contains(info.Function, "TestCaptureSkip") {
			found = true
		}
		return true
	})
	assert.True(found)
}

func TestResolveIdempotent(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	c := heapstack.Capture(0)
	pc, err := c.Frame(0)
	assert.NoError(err)

	collect := func() (infos []heapstack.FrameInfo) {
		heapstack.Resolve(pc, func(info heapstack.FrameInfo) bool {
			infos = append(infos, info)
			return true
		})
		return
	}
	assert.Equal(collect(), collect())
}

func TestResolveUnknownPC(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	var infos []heapstack.FrameInfo
	heapstack.Resolve(0x1, func(info heapstack.FrameInfo) bool {
		infos = append(infos, info)
		return true
	})

	// Degrades to the bare address, never to silence.
	assert.Len(infos, 1)
	assert.Equal(uintptr(0x1), infos[0].PC)
	assert.Empty(infos[0].Function)
	assert.Empty(infos[0].File)
}

func TestResolveStopsEarly(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	c := heapstack.Capture(0)
	pc, err := c.Frame(0)
	assert.NoError(err)

	calls := 0
	heapstack.Resolve(pc, func(heapstack.FrameInfo) bool {
		calls++
		return false
	})
	assert.Equal(1, calls)
}

func TestFormat(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	c := heapstack.Capture(0)

	var buf bytes.Buffer
	c.Format(&buf, "  ")
	out := buf.String()

	assert.Contains(out, "0x")
	assert.Contains(out, "TestFormat")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.GreaterOrEqual(len(lines), c.FrameCount())
	for _, line := range lines {
		assert.True(strings.HasPrefix(line, "  "), "line %q not indented", line)
	}
}

func TestFormatEmptyStack(t *testing.T) {
	t.Parallel()
	assert := require.New(t)

	var c heapstack.Callstack
	assert.Zero(c.FrameCount())

	var buf bytes.Buffer
	c.Format(&buf, "  ")
	assert.Empty(buf.String())
}
