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

// Package shard partitions a single registered memory region into the
// index slots, edge heap, per-thread scratch buffers, and per-(thread,peer)
// rings that spec section 6 lists, in that order, and maps that region into
// memory. The remote read protocol against a peer's region is in kv/remote.
package shard

import (
	"github.com/latticegraph/gstore/internal/config"
	"github.com/latticegraph/gstore/kv"
)

// ssidBits is the width of the id space the HD_RATIO header-fraction rule
// is computed against; it matches the vid field width of a packed Key
// (kv.MaxVID's bit width), since the index holds one bucket chain per
// distinct subject/object id.
const ssidBits = 45

// DefaultScratchSize is the per-thread staging buffer used both to receive
// one-sided remote reads (spec section 9(b)) and to stage outgoing ring
// frames before they are written into a peer's ring region.
const DefaultScratchSize = 1 << 16 // 64KiB

// DefaultRingSize is the per-(reader thread, writer shard) ring size.
const DefaultRingSize = 1 << 20 // 1MiB

// mirrorStride is the byte width of one ring's head-mirror slot: a single
// uint64 publishing the reader's consumed-bytes cursor to the writer.
const mirrorStride = 8

// Layout describes how a registered region's bytes are carved up.
type Layout struct {
	NumMainBuckets     uint64
	NumIndirectBuckets uint64
	NumSlots           uint64
	NumEdges           uint64

	IndexBytes uint64
	EdgeBytes  uint64

	NumEngines   int
	NumServers   int
	ScratchSize  uint64
	RingSize     uint64
	MirrorStride uint64

	Associativity int
}

// headerFraction implements the HD_RATIO rule of spec section 6:
// header_frac = 128 / (128 + 3*ssid_bits).
func headerFraction() float64 {
	return 128.0 / (128.0 + 3.0*float64(ssidBits))
}

// Compute derives a Layout from a validated Config. KVStoreSize is split
// between the index region and the edge heap by the HD_RATIO rule; scratch
// buffers, rings, and mirror slots are sized independently and added on
// top, since spec section 6 lists them as later entries in the same region
// without tying their size to kvstore_size.
func Compute(cfg *config.Config) Layout {
	frac := headerFraction()
	indexBytes := uint64(float64(cfg.KVStoreSize) * frac)
	edgeBytes := uint64(cfg.KVStoreSize) - indexBytes

	numSlots := indexBytes / kv.SlotSize
	a := uint64(cfg.Associativity)
	totalBuckets := numSlots / a

	mainTarget := totalBuckets * uint64(cfg.MainHeaderRatio) / 100
	numMain := kv.NearestPrimeAtMost(mainTarget)
	if numMain == 0 {
		numMain = 1
	}
	numIndirect := totalBuckets - numMain
	numSlots = (numMain + numIndirect) * a

	return Layout{
		NumMainBuckets:     numMain,
		NumIndirectBuckets: numIndirect,
		NumSlots:           numSlots,
		NumEdges:           edgeBytes / kv.EdgeSize,
		IndexBytes:         numSlots * kv.SlotSize,
		EdgeBytes:          (edgeBytes / kv.EdgeSize) * kv.EdgeSize,
		NumEngines:         cfg.NumEngines,
		NumServers:         cfg.NumServers,
		ScratchSize:        DefaultScratchSize,
		RingSize:           DefaultRingSize,
		MirrorStride:       mirrorStride,
		Associativity:      cfg.Associativity,
	}
}

// IndexOffset is the absolute byte offset of the index region within any
// region laid out per l. It is always zero — the index region comes first
// — but is exposed so remote readers never need to hardcode that.
func (l Layout) IndexOffset() uint64 { return 0 }

// EdgeHeapOffset is the absolute byte offset of the edge heap within any
// region laid out per l, used to address a peer's edge heap directly (spec
// section 4.5 step 5: "offset is Ns*sizeof(slot) + ptr.off*sizeof(edge)").
func (l Layout) EdgeHeapOffset() uint64 { return l.IndexBytes }

// offsets returns the five region section boundaries computed from l alone,
// so a shard can address a peer's region by offset without holding the
// peer's actual Region — every shard in a cluster shares the same Layout.
func (l Layout) offsets() (indexOff, edgeOff, scratchOff, ringsOff, mirrorOff uint64) {
	indexOff = 0
	edgeOff = indexOff + l.IndexBytes
	scratchOff = edgeOff + l.EdgeBytes
	ringsOff = scratchOff + uint64(l.NumEngines)*l.ScratchSize
	mirrorOff = ringsOff + uint64(l.NumEngines)*uint64(l.NumServers)*l.RingSize
	return
}

// ringIndex linearizes a (threadID, peerShard) pair over NumServers peers.
func (l Layout) ringIndex(threadID, peerShard int) uint64 {
	return uint64(threadID)*uint64(l.NumServers) + uint64(peerShard)
}

// RingOffsetFor returns the absolute byte offset, within any region laid
// out per l, of the ring serving reader thread threadID fed by writer
// shard peerShard.
func (l Layout) RingOffsetFor(threadID, peerShard int) uint64 {
	_, _, _, ringsOff, _ := l.offsets()
	return ringsOff + l.ringIndex(threadID, peerShard)*l.RingSize
}

// MirrorOffsetFor returns the absolute byte offset, within any region laid
// out per l, of the head-mirror slot indexed (threadID, peerShard).
func (l Layout) MirrorOffsetFor(threadID, peerShard int) uint64 {
	_, _, _, _, mirrorOff := l.offsets()
	return mirrorOff + l.ringIndex(threadID, peerShard)*l.MirrorStride
}

// TotalBytes is the full size of the registered region this Layout needs:
// index region + edge heap + one scratch buffer per engine + one ring per
// (engine, peer shard) + one mirror slot per (engine, peer shard).
func (l Layout) TotalBytes() uint64 {
	ringsAndMirrors := uint64(l.NumEngines) * uint64(l.NumServers) * (l.RingSize + l.MirrorStride)
	scratch := uint64(l.NumEngines) * l.ScratchSize
	return l.IndexBytes + l.EdgeBytes + scratch + ringsAndMirrors
}
