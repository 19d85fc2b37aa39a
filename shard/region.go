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

package shard

import "fmt"

// Region is the registered memory region backing one shard, carved up per
// its Layout in the order spec section 6 specifies: index region, edge
// heap, per-thread scratch buffers, per-(thread,peer) rings, ring
// head-mirror slots. One-sided remote reads/writes against this shard
// target fixed byte offsets within buf, computed the same way locally and
// remotely.
type Region struct {
	Layout Layout
	buf    []byte
	close  func() error

	indexOff   uint64
	edgeOff    uint64
	scratchOff uint64
	ringsOff   uint64
	mirrorOff  uint64
}

// NewRegion allocates and partitions a region sized to l.TotalBytes().
func NewRegion(l Layout) (*Region, error) {
	size := l.TotalBytes()
	buf, closeFn, err := allocateRegion(int(size))
	if err != nil {
		return nil, fmt.Errorf("shard: allocate region of %d bytes: %w", size, err)
	}
	r := &Region{Layout: l, buf: buf, close: closeFn}
	r.indexOff, r.edgeOff, r.scratchOff, r.ringsOff, r.mirrorOff = l.offsets()
	return r, nil
}

// Close releases the underlying mapping.
func (r *Region) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Bytes returns the full backing buffer, for tests and for staging
// directly-addressed remote copies.
func (r *Region) Bytes() []byte { return r.buf }

// IndexRegion is the slot array the local hash index is built over.
func (r *Region) IndexRegion() []byte {
	return r.buf[r.indexOff : r.indexOff+r.Layout.IndexBytes]
}

// EdgeHeap is the 32-bit edge record array the allocator manages.
func (r *Region) EdgeHeap() []byte {
	return r.buf[r.edgeOff : r.edgeOff+r.Layout.EdgeBytes]
}

// EdgeHeapOffset is the byte offset of the edge heap within the region,
// used to compute a remote read's target offset (spec section 4.5 step 5:
// "offset is Ns*sizeof(slot) + ptr.off*sizeof(edge)").
func (r *Region) EdgeHeapOffset() uint64 { return r.edgeOff }

// Scratch returns the staging buffer reserved for engine threadID.
func (r *Region) Scratch(threadID int) []byte {
	off := r.scratchOff + uint64(threadID)*r.Layout.ScratchSize
	return r.buf[off : off+r.Layout.ScratchSize]
}

// Ring returns the bounded byte ring a writer on peerShard uses to send
// framed messages to reader thread threadID on this shard.
func (r *Region) Ring(threadID, peerShard int) []byte {
	off := r.Layout.RingOffsetFor(threadID, peerShard)
	return r.buf[off : off+r.Layout.RingSize]
}

// RingOffset returns the absolute byte offset of a ring, for remote writes
// that address this shard's region directly.
func (r *Region) RingOffset(threadID, peerShard int) uint64 {
	return r.Layout.RingOffsetFor(threadID, peerShard)
}

// Mirror returns the 8-byte head-mirror slot indexed (threadID, peerShard).
// When this shard is acting as a ring writer to (peerShard, threadID), the
// slot holds the latest head that reader has published back to it.
func (r *Region) Mirror(threadID, peerShard int) []byte {
	off := r.Layout.MirrorOffsetFor(threadID, peerShard)
	return r.buf[off : off+r.Layout.MirrorStride]
}

// MirrorOffset returns the absolute byte offset of a mirror slot.
func (r *Region) MirrorOffset(threadID, peerShard int) uint64 {
	return r.Layout.MirrorOffsetFor(threadID, peerShard)
}
