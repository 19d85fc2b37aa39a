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

package index

import (
	"fmt"
	"sync/atomic"

	"github.com/latticegraph/gstore/kv"
)

// DefaultNumLocks is NUM_LOCKS from spec section 4.1.
const DefaultNumLocks = 1024

// CapacityExhaustedError is returned when the indirect-bucket region is
// full — spec section 7's "CapacityExhausted", fatal and structural.
type CapacityExhaustedError struct {
	Resource string
}

func (e *CapacityExhaustedError) Error() string {
	return fmt.Sprintf("kv/index: %s exhausted", e.Resource)
}

// Index is the open-addressed, bucketed, chained hash index of spec section
// 4.1. It owns no memory itself: Region is a byte slice carved out of the
// shard's registered memory region by the caller, sized to
// (NumMain+NumIndirect) * Associativity * kv.SlotSize bytes.
type Index struct {
	Region        []byte
	Associativity int
	NumMain       uint64
	NumIndirect   uint64

	locks        SpinlockTable
	indirectLock Spinlock
	lastExt      uint64 // atomic: next unallocated indirect bucket, 0-based
}

// New constructs an Index over region. numMain should be sized by the
// caller via kv.NearestPrimeAtMost, per spec section 4.1.
func New(region []byte, associativity int, numMain, numIndirect uint64, numLocks int) *Index {
	if numLocks <= 0 {
		numLocks = DefaultNumLocks
	}
	return &Index{
		Region:        region,
		Associativity: associativity,
		NumMain:       numMain,
		NumIndirect:   numIndirect,
		locks:         NewSpinlockTable(numLocks),
	}
}

// bucketBase returns the absolute slot index of bucket's first slot. Main
// buckets are addressed 0..NumMain-1; indirect buckets are addressed
// NumMain..NumMain+NumIndirect-1, contiguous with the main region.
func (ix *Index) bucketBase(bucket uint64) uint64 {
	return bucket * uint64(ix.Associativity)
}

func (ix *Index) dataSlots() int { return ix.Associativity - 1 }

// mainBucket hashes k to its starting bucket: hash(k) mod Nm.
func (ix *Index) mainBucket(k kv.Key) uint64 {
	return k.Hash() % ix.NumMain
}

// allocIndirect bumps the indirect-bucket allocator under its own spinlock,
// independent from the per-bucket lock table (spec section 4.1: "a single
// extra spinlock guards the indirect-bucket bump allocator").
func (ix *Index) allocIndirect() (uint64, error) {
	ix.indirectLock.Lock()
	defer ix.indirectLock.Unlock()
	if ix.lastExt >= ix.NumIndirect {
		return 0, &CapacityExhaustedError{Resource: "indirect buckets"}
	}
	b := ix.lastExt
	ix.lastExt++
	return ix.NumMain + b, nil
}

// IndirectUsed reports how many indirect buckets have been handed out, for
// tests and diagnostics (scenario 2 in spec section 8 checks this count).
func (ix *Index) IndirectUsed() uint64 {
	return atomic.LoadUint64(&ix.lastExt)
}

// LookupLocal walks k's bucket chain without taking any lock. Per spec
// section 4.1/5, local readers tolerate a racing insert because the key
// word is always published last and an empty data slot never becomes
// non-empty halfway through a write.
func (ix *Index) LookupLocal(k kv.Key) (kv.Slot, bool) {
	bucket := ix.mainBucket(k)
	for {
		base := ix.bucketBase(bucket)
		for i := 0; i < ix.dataSlots(); i++ {
			s := kv.ReadSlotAt(ix.Region, base+uint64(i))
			if s.Empty() {
				return kv.Slot{}, false
			}
			if s.Key.Equal(k) {
				return s, true
			}
		}
		next := kv.ChainLink(ix.Region, base+uint64(ix.dataSlots()))
		if next == 0 {
			return kv.Slot{}, false
		}
		bucket = next
	}
}

// InsertKey inserts (k, ptr). If k already exists: when checkDup is true
// that is a logic failure (returned as an error, per spec section 4.1); when
// false the existing slot is returned unchanged and existed is true.
func (ix *Index) InsertKey(k kv.Key, ptr kv.ValuePointer, checkDup bool) (slot kv.Slot, existed bool, err error) {
	bucket := ix.mainBucket(k)
	for {
		base := ix.bucketBase(bucket)
		lock := ix.locks.For(bucket)
		lock.Lock()

		for i := 0; i < ix.dataSlots(); i++ {
			idx := base + uint64(i)
			s := kv.ReadSlotAt(ix.Region, idx)
			if s.Empty() {
				kv.PublishSlot(ix.Region, idx, k, ptr)
				lock.Unlock()
				return kv.Slot{Key: k, Ptr: ptr}, false, nil
			}
			if s.Key.Equal(k) {
				lock.Unlock()
				if checkDup {
					return kv.Slot{}, true, fmt.Errorf("kv/index: duplicate key %v", k)
				}
				return s, true, nil
			}
		}

		linkIdx := base + uint64(ix.dataSlots())
		next := kv.ChainLink(ix.Region, linkIdx)
		if next == 0 {
			nb, aerr := ix.allocIndirect()
			if aerr != nil {
				lock.Unlock()
				return kv.Slot{}, false, aerr
			}
			kv.SetChainLink(ix.Region, linkIdx, nb)
			next = nb
		}
		lock.Unlock()
		bucket = next
	}
}

// UpdateValue rewrites the value pointer of an existing key in place,
// without disturbing the key field. It is used by the dynamic online-insert
// path after growing a vertex's edge block, where the slot already exists
// and only its pointer changes. Reports false if k is not present.
func (ix *Index) UpdateValue(k kv.Key, ptr kv.ValuePointer) bool {
	bucket := ix.mainBucket(k)
	for {
		base := ix.bucketBase(bucket)
		lock := ix.locks.For(bucket)
		lock.Lock()

		for i := 0; i < ix.dataSlots(); i++ {
			idx := base + uint64(i)
			s := kv.ReadSlotAt(ix.Region, idx)
			if s.Empty() {
				lock.Unlock()
				return false
			}
			if s.Key.Equal(k) {
				kv.UpdateValuePointer(ix.Region, idx, ptr)
				lock.Unlock()
				return true
			}
		}

		linkIdx := base + uint64(ix.dataSlots())
		next := kv.ChainLink(ix.Region, linkIdx)
		lock.Unlock()
		if next == 0 {
			return false
		}
		bucket = next
	}
}

// ScanAll visits every occupied slot in the index (main and indirect
// regions), in bucket order. It is used by the mapper's index-build phase
// and by the integrity verifier, never on a hot path, so it takes no locks
// and relies on the same lock-free read protocol as LookupLocal.
func (ix *Index) ScanAll(fn func(slotIdx uint64, s kv.Slot) bool) {
	total := (ix.NumMain + ix.NumIndirect) * uint64(ix.Associativity)
	for base := uint64(0); base < total; base += uint64(ix.Associativity) {
		for i := 0; i < ix.dataSlots(); i++ {
			idx := base + uint64(i)
			s := kv.ReadSlotAt(ix.Region, idx)
			if s.Empty() {
				continue
			}
			if !fn(idx, s) {
				return
			}
		}
	}
}

// Refresh clears every slot back to empty, used to reset a store between
// bulk loads in tests.
func (ix *Index) Refresh() {
	total := (ix.NumMain + ix.NumIndirect) * uint64(ix.Associativity)
	for idx := uint64(0); idx < total; idx++ {
		kv.ClearSlot(ix.Region, idx)
	}
	atomic.StoreUint64(&ix.lastExt, 0)
}
