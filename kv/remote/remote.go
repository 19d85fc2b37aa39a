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

// Package remote implements the remote read protocol of spec section 4.5:
// resolving a (vid, pid, dir) key on a peer shard using only one-sided
// reads against that peer's registered region, safely across concurrent
// writers on the peer via the dynamic-mode size-tag coherence check.
package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv"
	"github.com/latticegraph/gstore/kv/cache"
	"github.com/latticegraph/gstore/metrics"
	"github.com/latticegraph/gstore/shard"
	"github.com/latticegraph/gstore/transport/rdma"
)

// MaxInFlight bounds the number of concurrent one-sided reads a single
// Reader (one per engine thread) may have outstanding at once, via
// golang.org/x/sync/semaphore, so a burst of lookups from one thread can't
// saturate the fabric's completion queue.
const MaxInFlight = 16

// PeerFor implements spec section 4.5 step 1: the shard holding vid.
func PeerFor(vid ids.ID, numServers int) int {
	return int(vid % uint64(numServers))
}

// Result is a resolved vertex value: its edges as raw 32-bit words (sids or
// attribute payload words) and the tag naming how to interpret them.
type Result struct {
	Words []uint32
	Tag   kv.TypeTag
}

// Reader resolves keys on peer shards. One Reader is normally owned by a
// single engine thread, mirroring the per-thread scratch buffer it reads
// into.
type Reader struct {
	Fabric  rdma.Fabric
	Layout  shard.Layout
	Cache   *cache.Cache
	Dynamic bool
	Lease   time.Duration

	sem *semaphore.Weighted
}

// NewReader constructs a Reader. cache may be a disabled *cache.Cache
// (Cache.Enabled == false); Lookup behaves identically either way, since
// cache.Cache already no-ops every call when disabled.
func NewReader(fabric rdma.Fabric, layout shard.Layout, c *cache.Cache, dynamic bool, lease time.Duration) *Reader {
	return &Reader{
		Fabric:  fabric,
		Layout:  layout,
		Cache:   c,
		Dynamic: dynamic,
		Lease:   lease,
		sem:     semaphore.NewWeighted(MaxInFlight),
	}
}

// Lookup resolves k on peer, implementing spec section 4.5 steps 2-6.
// scratch must be at least large enough to hold one bucket's worth of
// slots and the largest edge block this store can produce; the shard
// package's per-thread scratch buffer (shard.DefaultScratchSize) is sized
// generously for this. found is false on a clean "not found" (step 3/4);
// a non-nil error means the fabric itself failed (spec section 7,
// RemoteUnavailable), which callers surface rather than treat as
// not-found.
func (r *Reader) Lookup(ctx context.Context, peer int, k kv.Key, scratch []byte) (res Result, found bool, err error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{}, false, err
	}
	defer r.sem.Release(1)

	timer := prometheus.NewTimer(metrics.RemoteReadSeconds)
	defer timer.ObserveDuration()

	for {
		now := time.Now()
		if slot, ok := r.Cache.Lookup(k, now); ok {
			res, coherent, err := r.readEdges(ctx, peer, slot.Ptr, scratch)
			if err != nil {
				return Result{}, false, err
			}
			if coherent {
				return res, true, nil
			}
			// Step 6 coherence retry: the cached pointer's block was freed
			// and recycled. Invalidate and fall through to a fresh chain
			// walk instead of trusting the stale cache entry again.
			metrics.CoherenceRetries.Inc()
			r.Cache.Invalidate(k)
			continue
		}

		slot, ok, err := r.walkChain(ctx, peer, k, scratch)
		if err != nil {
			return Result{}, false, err
		}
		if !ok {
			return Result{}, false, nil
		}
		r.Cache.Insert(slot, r.Lease, now)

		res, coherent, err := r.readEdges(ctx, peer, slot.Ptr, scratch)
		if err != nil {
			return Result{}, false, err
		}
		if coherent {
			return res, true, nil
		}
		metrics.CoherenceRetries.Inc()
		r.Cache.Invalidate(k)
	}
}

// walkChain implements spec section 4.5 step 3: one remote read of A
// contiguous slots per bucket, scanning for a match, an empty terminator,
// or a chain link to the next bucket.
func (r *Reader) walkChain(ctx context.Context, peer int, k kv.Key, scratch []byte) (kv.Slot, bool, error) {
	a := r.Layout.Associativity
	bucketBytes := uint64(a) * kv.SlotSize
	if uint64(len(scratch)) < bucketBytes {
		return kv.Slot{}, false, fmt.Errorf("remote: scratch of %d bytes too small for a %d-byte bucket", len(scratch), bucketBytes)
	}
	buf := scratch[:bucketBytes]

	bucket := k.Hash() % r.Layout.NumMainBuckets
	for {
		off := r.Layout.IndexOffset() + bucket*bucketBytes
		if err := r.Fabric.Read(ctx, peer, off, buf); err != nil {
			return kv.Slot{}, false, err
		}
		for i := 0; i < a-1; i++ {
			s := kv.ReadSlotAt(buf, uint64(i))
			if s.Empty() {
				return kv.Slot{}, false, nil
			}
			if s.Key.Equal(k) {
				return s, true, nil
			}
		}
		next := kv.ChainLink(buf, uint64(a-1))
		if next == 0 {
			return kv.Slot{}, false, nil
		}
		bucket = next
	}
}

// readEdges implements spec section 4.5 steps 5-6: one remote read of the
// vertex's edge block, sized per mode, with the dynamic-mode size-tag
// check. Per design note 9(b), every byte this function inspects came off
// this call's own Fabric.Read into scratch — never the peer's local edge
// slice — so there is no window for a pointer computed here to alias the
// origin shard's live memory.
func (r *Reader) readEdges(ctx context.Context, peer int, ptr kv.ValuePointer, scratch []byte) (Result, bool, error) {
	var length uint64
	if r.Dynamic {
		length = kv.ClassCapacity(kv.BuddyClass(ptr.Size()))
	} else {
		length = ptr.Size()
	}
	byteLen := length * kv.EdgeSize
	if uint64(len(scratch)) < byteLen {
		return Result{}, false, fmt.Errorf("remote: scratch of %d bytes too small for a %d-byte edge block", len(scratch), byteLen)
	}
	buf := scratch[:byteLen]
	off := r.Layout.EdgeHeapOffset() + ptr.Offset()*kv.EdgeSize
	if err := r.Fabric.Read(ctx, peer, off, buf); err != nil {
		return Result{}, false, err
	}

	if r.Dynamic {
		tag := kv.ReadEdge(buf, length-1)
		if uint64(tag) != ptr.Size() {
			return Result{}, false, nil
		}
	}
	return Result{Words: kv.ReadEdges(buf, 0, ptr.Size()), Tag: ptr.Tag()}, true, nil
}
