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

package alloc

import (
	"sync/atomic"
	"time"

	"github.com/latticegraph/gstore/kv"
	"github.com/latticegraph/gstore/kv/index"
	"github.com/latticegraph/gstore/metrics"
)

const numBuddyClasses = 32 // covers block capacities up to 1<<31 edge slots

type freeList struct {
	lock index.Spinlock
	off  []uint64
}

func (f *freeList) push(off uint64) {
	f.lock.Lock()
	f.off = append(f.off, off)
	f.lock.Unlock()
}

func (f *freeList) pop() (uint64, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(f.off) == 0 {
		return 0, false
	}
	n := len(f.off) - 1
	off := f.off[n]
	f.off = f.off[:n]
	return off, true
}

// pendingEntry is one row of the deferred-free FIFO: an offset awaiting its
// lease window before it can rejoin the buddy free lists.
type pendingEntry struct {
	off    uint64
	class  int
	expiry time.Time
}

// Dynamic is the buddy allocator with deferred free used when
// dynamic_gstore is true (spec section 4.2). Every allocated block reserves
// one trailing edge slot for a size tag; freeing a block rewrites that tag
// to kv.InvalidEdges and queues the block on a lease-gated FIFO instead of
// returning it to the free lists immediately, so a remote reader that read
// the old pointer just before a grow cannot have the block recycled out
// from under it.
type Dynamic struct {
	Heap     []byte
	NumEdges uint64
	Lease    time.Duration

	top uint64 // atomic bump cursor into never-used heap space

	perThread []perThreadLists // indexed by thread id
	shared    [numBuddyClasses]freeList

	pendingLock index.Spinlock
	pending     []pendingEntry
}

type perThreadLists struct {
	lists [numBuddyClasses][]uint64
}

func NewDynamic(heap []byte, numEdges uint64, numThreads int, lease time.Duration) *Dynamic {
	return &Dynamic{
		Heap:      heap,
		NumEdges:  numEdges,
		Lease:     lease,
		perThread: make([]perThreadLists, numThreads),
	}
}

func (d *Dynamic) bump(capacity uint64) (uint64, error) {
	off := atomic.AddUint64(&d.top, capacity) - capacity
	if off+capacity > d.NumEdges {
		return 0, &CapacityExhaustedError{Requested: capacity, Remaining: d.NumEdges - off}
	}
	return off, nil
}

// Sweep pops every pending-free entry whose lease has expired and returns
// it to the shared free list of its buddy class. It runs at the head of
// every allocation, per spec section 4.2.
func (d *Dynamic) Sweep(now time.Time) {
	d.pendingLock.Lock()
	i := 0
	for i < len(d.pending) && !d.pending[i].expiry.After(now) {
		i++
	}
	ready := d.pending[:i]
	d.pending = d.pending[i:]
	d.pendingLock.Unlock()

	if len(ready) > 0 {
		metrics.AllocSweeps.Inc()
	}
	for _, p := range ready {
		d.shared[p.class].push(p.off)
	}
}

// AllocEdges reserves a block with capacity for n data edges (plus the
// trailing size tag) and writes the tag. threadID selects the caller's
// per-thread free list.
func (d *Dynamic) AllocEdges(n uint64, threadID int, now time.Time) (uint64, error) {
	d.Sweep(now)

	class := kv.BuddyClass(n)
	capacity := kv.ClassCapacity(class)

	var off uint64
	var err error
	if threadID >= 0 && threadID < len(d.perThread) {
		pt := &d.perThread[threadID].lists[class]
		if l := len(*pt); l > 0 {
			off = (*pt)[l-1]
			*pt = (*pt)[:l-1]
		} else if o, ok := d.shared[class].pop(); ok {
			off = o
		} else {
			off, err = d.bump(capacity)
			if err != nil {
				return 0, err
			}
		}
	} else if o, ok := d.shared[class].pop(); ok {
		off = o
	} else {
		off, err = d.bump(capacity)
		if err != nil {
			return 0, err
		}
	}

	kv.WriteEdge(d.Heap, off+capacity-1, uint32(n))
	return off, nil
}

// PendingFree marks the block at off (of the given data size) as free, by
// rewriting its size tag to kv.InvalidEdges and queuing it on the deferred
// free FIFO for Lease before it rejoins the buddy free lists.
func (d *Dynamic) PendingFree(off uint64, size uint64, now time.Time) {
	class := kv.BuddyClass(size)
	capacity := kv.ClassCapacity(class)
	kv.WriteEdge(d.Heap, off+capacity-1, kv.InvalidEdges)

	d.pendingLock.Lock()
	d.pending = append(d.pending, pendingEntry{off: off, class: class, expiry: now.Add(d.Lease)})
	d.pendingLock.Unlock()
}

// PendingCount reports the number of blocks currently awaiting their lease,
// used by tests (spec section 8 scenario 3: "free_queue size = 1").
func (d *Dynamic) PendingCount() int {
	d.pendingLock.Lock()
	defer d.pendingLock.Unlock()
	return len(d.pending)
}

// MergeFreelists folds every per-thread free list into the shared free
// lists. Called once after a bulk load, before online inserts begin, so
// that a load which ran with knowledge of a single loader thread doesn't
// leave per-thread caches unreachable from other threads.
func (d *Dynamic) MergeFreelists() {
	metrics.AllocMerges.Inc()
	for t := range d.perThread {
		for c := range d.perThread[t].lists {
			for _, off := range d.perThread[t].lists[c] {
				d.shared[c].push(off)
			}
			d.perThread[t].lists[c] = nil
		}
	}
}

// Grow ensures a vertex's edge block can hold newSize data edges, given it
// currently holds oldSize in a block at oldOff. If the existing block's
// buddy class already has room, it rewrites the block's size tag to
// newSize and returns grew=false; the caller should keep using oldOff.
// Otherwise it allocates a fresh block, copies the oldSize live edges
// across, stales the old block, and queues it for deferred free.
func (d *Dynamic) Grow(oldOff, oldSize, newSize uint64, threadID int, now time.Time) (newOff uint64, grew bool, err error) {
	oldCapacity := kv.BlockCapacity(oldSize)
	if oldCapacity-1 >= newSize {
		kv.WriteEdge(d.Heap, oldOff+oldCapacity-1, uint32(newSize))
		return oldOff, false, nil
	}
	newOff, err = d.AllocEdges(newSize, threadID, now)
	if err != nil {
		return 0, false, err
	}
	live := kv.ReadEdges(d.Heap, oldOff, oldSize)
	kv.WriteEdges(d.Heap, newOff, live)
	d.PendingFree(oldOff, oldSize, now)
	return newOff, true, nil
}
