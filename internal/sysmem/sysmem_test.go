package sysmem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestPageSizeMemoized(t *testing.T) {
	first := PageSize()
	second := PageSize()
	require.Equal(t, first, second)
	require.Greater(t, first, 0)
}

func TestMapUnmapRoundtrip(t *testing.T) {
	base, err := Map(3)
	require.NoError(t, err)
	require.Zero(t, base%uintptr(PageSize()))

	require.NoError(t, Unmap(base, 3))
}

func TestMapRejectsInvalidCount(t *testing.T) {
	_, err := Map(0)
	require.Error(t, err)

	_, err = Map(-1)
	require.Error(t, err)
}

func TestMappedMemoryIsWritable(t *testing.T) {
	base, err := Map(1)
	require.NoError(t, err)
	defer func() { require.NoError(t, Unmap(base, 1)) }()

	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), PageSize())
	for i := range b {
		b[i] = 0xAA
	}
	for i := range b {
		require.Equal(t, byte(0xAA), b[i])
	}
}
