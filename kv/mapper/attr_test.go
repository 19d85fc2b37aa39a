package mapper

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticegraph/gstore/kv"
)

func TestAttrValueIntRoundTrip(t *testing.T) {
	v := NewIntAttr(-42)
	require.Equal(t, kv.Int, v.Tag())
	require.Equal(t, uint64(1), v.WordCount())

	heap := make([]byte, 64)
	writeWords(heap, 0, v.Words())
	ptr := rawPointer(v.WordCount(), 0, v.Tag())

	got, ok := DecodeAttrValue(ptr, heap)
	require.True(t, ok)
	require.Equal(t, "int(-42)", got.String())
}

func TestAttrValueFloatRoundTrip(t *testing.T) {
	v := NewFloatAttr(3.5)
	require.Equal(t, kv.Float, v.Tag())
	require.Equal(t, uint64(1), v.WordCount())

	heap := make([]byte, 64)
	writeWords(heap, 0, v.Words())
	ptr := rawPointer(v.WordCount(), 0, v.Tag())

	got, ok := DecodeAttrValue(ptr, heap)
	require.True(t, ok)
	require.Equal(t, "float(3.5)", got.String())
}

func TestAttrValueDoubleRoundTrip(t *testing.T) {
	v := NewDoubleAttr(2.71828)
	require.Equal(t, kv.Double, v.Tag())
	require.Equal(t, uint64(2), v.WordCount())

	heap := make([]byte, 64)
	writeWords(heap, 0, v.Words())
	ptr := rawPointer(v.WordCount(), 0, v.Tag())

	got, ok := DecodeAttrValue(ptr, heap)
	require.True(t, ok)
	require.Equal(t, "double(2.71828)", got.String())
}

func TestDecodeAttrValueRejectsSidList(t *testing.T) {
	ptr := rawPointer(2, 0, kv.SidList)
	_, ok := DecodeAttrValue(ptr, make([]byte, 64))
	require.False(t, ok)
}

