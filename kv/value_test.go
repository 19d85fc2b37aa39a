package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValuePointerRoundTrip(t *testing.T) {
	p := NewValuePointer(17, 9001, Double)
	require.Equal(t, uint64(17), p.Size())
	require.Equal(t, uint64(9001), p.Offset())
	require.Equal(t, Double, p.Tag())
	require.False(t, p.IsEmpty())

	p2 := RawValuePointer(p.Raw())
	require.Equal(t, p, p2)
}

func TestValuePointerEmpty(t *testing.T) {
	var z ValuePointer
	require.True(t, z.IsEmpty())
}

func TestValuePointerWithSizeOffset(t *testing.T) {
	p := NewValuePointer(1, 2, Int)
	p = p.WithSize(5)
	require.Equal(t, uint64(5), p.Size())
	require.Equal(t, uint64(2), p.Offset())
	require.Equal(t, Int, p.Tag())

	p = p.WithOffset(99)
	require.Equal(t, uint64(99), p.Offset())
	require.Equal(t, uint64(5), p.Size())
}

func TestNewValuePointerPanicsOnTruncation(t *testing.T) {
	require.Panics(t, func() { NewValuePointer(MaxEdgeCount+1, 0, SidList) })
	require.Panics(t, func() { NewValuePointer(0, MaxEdgeOffset+1, SidList) })
}

func TestTypeTagValid(t *testing.T) {
	require.True(t, SidList.Valid())
	require.True(t, Int.Valid())
	require.True(t, Float.Valid())
	require.True(t, Double.Valid())
	require.False(t, TypeTag(4).Valid())
}

func TestTypeTagString(t *testing.T) {
	require.Equal(t, "sid-list", SidList.String())
	require.Equal(t, "int", Int.String())
	require.Equal(t, "float", Float.String())
	require.Equal(t, "double", Double.String())
	require.Equal(t, "unknown", TypeTag(9).String())
}
