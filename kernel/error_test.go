package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "pmm",
		Message: "out of memory",
	}

	require.Equal(t, err.Message, err.Error())
	require.Equal(t, "[pmm] out of memory", err.String())

	var asErr error = err
	require.EqualError(t, asErr, "out of memory")
}
