package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriteEdge(t *testing.T) {
	heap := make([]byte, 16*EdgeSize)
	WriteEdge(heap, 3, 0xdeadbeef)
	require.Equal(t, uint32(0xdeadbeef), ReadEdge(heap, 3))
	require.Equal(t, uint32(0), ReadEdge(heap, 4))
}

func TestReadWriteEdges(t *testing.T) {
	heap := make([]byte, 16*EdgeSize)
	vs := []uint32{10, 20, 30, 40}
	WriteEdges(heap, 2, vs)

	got := ReadEdges(heap, 2, uint64(len(vs)))
	require.Equal(t, vs, got)
	require.Equal(t, uint32(0), ReadEdge(heap, 1))
	require.Equal(t, uint32(0), ReadEdge(heap, 6))
}

func TestInvalidEdgesSentinel(t *testing.T) {
	require.Equal(t, uint32(1<<28), InvalidEdges)
}
