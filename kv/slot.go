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

import (
	"sync/atomic"
	"unsafe"
)

// SlotSize is the byte width of one index slot: an 8-byte key word followed
// by an 8-byte value-pointer word.
const SlotSize = 16

// Slot is a (Key, ValuePointer) pair, the 128-bit unit the local hash index
// is built from.
type Slot struct {
	Key Key
	Ptr ValuePointer
}

// Empty reports whether the slot is unoccupied.
func (s Slot) Empty() bool { return s.Key.IsEmpty() }

func slotWords(region []byte, slotIdx uint64) (key, ptr *uint64) {
	off := slotIdx * SlotSize
	// region is carved out of a page-aligned mmap'd allocation by the
	// caller at SlotSize (16-byte) strides, so both words land on an
	// 8-byte boundary and are safe for atomic access.
	key = (*uint64)(unsafe.Pointer(&region[off]))
	ptr = (*uint64)(unsafe.Pointer(&region[off+8]))
	return key, ptr
}

// ReadSlotAt performs a lock-free read of the slot at slotIdx within region.
// It reads the key word first and the value-pointer word second, mirroring
// the writer's publish order, so a racing insert is observed either as
// "still empty" or as a fully-formed slot — never half-written.
func ReadSlotAt(region []byte, slotIdx uint64) Slot {
	keyWord, ptrWord := slotWords(region, slotIdx)
	k := atomic.LoadUint64(keyWord)
	p := atomic.LoadUint64(ptrWord)
	return Slot{Key: RawKey(k), Ptr: RawValuePointer(p)}
}

// PublishSlot writes a brand-new occupied slot, publishing the value
// pointer first and the key last. A concurrent lock-free reader can only
// ever observe the key transition from empty to k once p is already
// visible.
func PublishSlot(region []byte, slotIdx uint64, k Key, p ValuePointer) {
	keyWord, ptrWord := slotWords(region, slotIdx)
	atomic.StoreUint64(ptrWord, p.Raw())
	atomic.StoreUint64(keyWord, k.Raw())
}

// UpdateValuePointer rewrites only the value-pointer word of an already
// occupied slot (the key is unchanged), e.g. when a vertex's edge block is
// grown and relocated. Readers racing this update see either the old or
// the new pointer, never a torn one, and the dynamic-mode size tag (kv/alloc)
// is what lets a remote reader detect it picked up a stale pointer.
func UpdateValuePointer(region []byte, slotIdx uint64, p ValuePointer) {
	_, ptrWord := slotWords(region, slotIdx)
	atomic.StoreUint64(ptrWord, p.Raw())
}

// ClearSlot resets a slot back to empty, as used by Index.Refresh.
func ClearSlot(region []byte, slotIdx uint64) {
	keyWord, ptrWord := slotWords(region, slotIdx)
	atomic.StoreUint64(keyWord, 0)
	atomic.StoreUint64(ptrWord, 0)
}

// ChainLink reads the bucket-id stored in a chain-link slot (the
// associativity-th slot of a bucket, which is never a data slot).
func ChainLink(region []byte, slotIdx uint64) uint64 {
	keyWord, _ := slotWords(region, slotIdx)
	return atomic.LoadUint64(keyWord)
}

// SetChainLink atomically installs the id of the next bucket in the chain.
// Returns false if another writer already installed a link (the caller
// should retry into the bucket that's now there).
func SetChainLink(region []byte, slotIdx uint64, nextBucket uint64) bool {
	keyWord, _ := slotWords(region, slotIdx)
	return atomic.CompareAndSwapUint64(keyWord, 0, nextBucket)
}
