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

// Package index is the local, open-addressed, bucketed, chained hash index
// over fixed-size vertex slots (spec section 4.1).
package index

import (
	"runtime"
	"sync/atomic"
)

// Spinlock is a busy-wait mutual-exclusion lock. The index uses NUM_LOCKS of
// these to virtualize per-bucket locking instead of one lock per bucket, and
// the ring transport and allocator each use one to serialize their own
// hot paths — all suspension points the concurrency model in spec section 5
// calls out explicitly.
type Spinlock struct {
	state uint32
}

// Lock spins until the lock is acquired, yielding the OS thread between
// attempts so a blocked holder on another goroutine gets scheduled.
func (s *Spinlock) Lock() {
	for !atomic.CompareAndSwapUint32(&s.state, 0, 1) {
		runtime.Gosched()
	}
}

// Unlock releases the lock. Unlocking an already-unlocked Spinlock is a
// programmer error and is not guarded against, matching the teacher's
// treatment of other structural misuse as not-our-problem.
func (s *Spinlock) Unlock() {
	atomic.StoreUint32(&s.state, 0)
}

// TryLock attempts to acquire the lock without spinning.
func (s *Spinlock) TryLock() bool {
	return atomic.CompareAndSwapUint32(&s.state, 0, 1)
}

// SpinlockTable is a fixed-size array of spinlocks used to virtualize
// per-bucket locking: a bucket maps to bucket % len(table).
type SpinlockTable []Spinlock

func NewSpinlockTable(n int) SpinlockTable {
	return make(SpinlockTable, n)
}

func (t SpinlockTable) For(bucket uint64) *Spinlock {
	return &t[bucket%uint64(len(t))]
}
