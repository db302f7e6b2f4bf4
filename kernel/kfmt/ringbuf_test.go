package kfmt

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBuffer(t *testing.T) {
	var (
		buf    bytes.Buffer
		expStr = "[pmm] total frames: 32768"
		rb     ringBuffer
	)

	t.Run("read/write", func(t *testing.T) {
		rb.wIndex = 0
		rb.rIndex = 0
		n, err := rb.Write([]byte(expStr))
		require.NoError(t, err)
		require.Equal(t, len(expStr), n)
		require.Equal(t, expStr, readByteByByte(&buf, &rb))
	})

	t.Run("write moves read pointer", func(t *testing.T) {
		rb.wIndex = ringBufferSize - 1
		rb.rIndex = 0
		_, err := rb.Write([]byte{'!'})
		require.NoError(t, err)
		require.Equal(t, 1, rb.rIndex, "expected write to push rIndex")
	})

	t.Run("wIndex < rIndex", func(t *testing.T) {
		rb.wIndex = ringBufferSize - 2
		rb.rIndex = ringBufferSize - 2
		n, err := rb.Write([]byte(expStr))
		require.NoError(t, err)
		require.Equal(t, len(expStr), n)
		require.Equal(t, expStr, readByteByByte(&buf, &rb))
	})

	t.Run("wrapped read with large buffer", func(t *testing.T) {
		rb.wIndex = ringBufferSize - 4
		rb.rIndex = ringBufferSize - 4
		_, _ = rb.Write([]byte(expStr))

		buf.Reset()
		_, err := io.Copy(&buf, &rb)
		require.NoError(t, err)
		require.Equal(t, expStr, buf.String())
	})

	t.Run("with io.Copy", func(t *testing.T) {
		rb.wIndex = 0
		rb.rIndex = 0
		n, err := rb.Write([]byte(expStr))
		require.NoError(t, err)
		require.Equal(t, len(expStr), n)

		buf.Reset()
		_, err = io.Copy(&buf, &rb)
		require.NoError(t, err)
		require.Equal(t, expStr, buf.String())
	})
}

func readByteByByte(buf *bytes.Buffer, r io.Reader) string {
	buf.Reset()
	var b = make([]byte, 1)
	for {
		_, err := r.Read(b)
		if err == io.EOF {
			break
		}
		buf.Write(b)
	}
	return buf.String()
}
