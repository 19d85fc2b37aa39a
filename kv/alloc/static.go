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

// Package alloc implements the two edge-heap allocation strategies of spec
// section 4.2: a static bump allocator for bulk-loaded, read-only stores,
// and a dynamic buddy allocator with deferred free for online inserts.
package alloc

import (
	"fmt"

	"github.com/latticegraph/gstore/kv/index"
)

// CapacityExhaustedError mirrors kv/index's: the edge heap is full.
type CapacityExhaustedError struct {
	Requested uint64
	Remaining uint64
}

func (e *CapacityExhaustedError) Error() string {
	return fmt.Sprintf("kv/alloc: edge heap exhausted: requested %d, %d remaining", e.Requested, e.Remaining)
}

// Static is the bump allocator used when dynamic_gstore is false: a single
// cursor over the edge heap, advanced under one spinlock, with no free.
type Static struct {
	Heap      []byte
	NumEdges  uint64
	lock      index.Spinlock
	lastEntry uint64
}

func NewStatic(heap []byte, numEdges uint64) *Static {
	return &Static{Heap: heap, NumEdges: numEdges}
}

// AllocEdges reserves n contiguous edge slots and returns their offset.
// Static mode never reserves a trailing size-tag slot (spec section 9(c)).
func (s *Static) AllocEdges(n uint64) (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.lastEntry+n > s.NumEdges {
		return 0, &CapacityExhaustedError{Requested: n, Remaining: s.NumEdges - s.lastEntry}
	}
	off := s.lastEntry
	s.lastEntry += n
	return off, nil
}

// Used reports the number of edge slots consumed so far.
func (s *Static) Used() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastEntry
}
