// Copyright 2014 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kv

import "encoding/binary"

// EdgeSize is the width, in bytes, of one edge record: a 32-bit sid or
// typed-attribute payload word (spec section 3, "edge heap").
const EdgeSize = 4

// InvalidEdges is the sentinel size tag a freed dynamic-mode edge block is
// overwritten with, marking it stale to any reader still holding the old
// pointer.
const InvalidEdges uint32 = 1 << 28

// ReadEdge reads the 32-bit edge record at slot idx of heap.
func ReadEdge(heap []byte, idx uint64) uint32 {
	off := idx * EdgeSize
	return binary.LittleEndian.Uint32(heap[off : off+EdgeSize])
}

// WriteEdge writes the 32-bit edge record at slot idx of heap.
func WriteEdge(heap []byte, idx uint64, v uint32) {
	off := idx * EdgeSize
	binary.LittleEndian.PutUint32(heap[off:off+EdgeSize], v)
}

// ReadEdges copies the n edges starting at offset off into a fresh slice.
func ReadEdges(heap []byte, off, n uint64) []uint32 {
	out := make([]uint32, n)
	for i := uint64(0); i < n; i++ {
		out[i] = ReadEdge(heap, off+i)
	}
	return out
}

// WriteEdges writes vs starting at offset off.
func WriteEdges(heap []byte, off uint64, vs []uint32) {
	for i, v := range vs {
		WriteEdge(heap, off+uint64(i), v)
	}
}
