package pmm

import (
	"bytes"
	"testing"

	"buhos/kernel/mm"

	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	alloc := newAllocator(t, 12)
	for frame := mm.Frame(0); frame < 3; frame++ {
		alloc.SetEntry(frame, FrameReserved)
	}
	_, err := alloc.AllocFrames(2, 0, 0)
	require.Nil(t, err)
	alloc.SetEntry(11, FrameReserved2)

	var buf bytes.Buffer
	alloc.Inspect(&buf)

	exp := "[0,2] = reserved\n[3,4] = used\n[5,10] = free\n[11,11] = reserved2\n"
	require.Equal(t, exp, buf.String())

	t.Run("single run", func(t *testing.T) {
		alloc := newAllocator(t, 4)
		buf.Reset()
		alloc.Inspect(&buf)
		require.Equal(t, "[0,3] = free\n", buf.String())
	})

	t.Run("no frames", func(t *testing.T) {
		alloc := newAllocator(t, 0)
		buf.Reset()
		alloc.Inspect(&buf)
		require.Empty(t, buf.String())
	})
}
