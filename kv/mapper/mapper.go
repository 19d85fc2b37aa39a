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

// Package mapper implements the triple-to-KV mapper of spec section 4.4:
// the encoding rules that turn (subject, predicate, object) triples and
// (subject, attribute, value) triples into the packed key schema and its
// derived predicate-index, type-index, and versatile index families.
package mapper

import (
	"fmt"
	"time"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv"
	"github.com/latticegraph/gstore/kv/index"
)

// Triple is a (subject, predicate, object) edge in id-space.
type Triple struct {
	S, P, O ids.ID
}

// Attribute is a (subject, attribute-id, value) typed literal in id-space.
type Attribute struct {
	S, A ids.ID
	Val  AttrValue
}

// BulkAllocator is the edge-heap allocation capability Phase A and Phase B
// need: a single bump/allocate call with no growth or per-thread affinity.
// *alloc.Static satisfies this directly; dynamicBulkAdapter adapts
// *alloc.Dynamic to it for a bulk load that precedes online inserts.
type BulkAllocator interface {
	AllocEdges(n uint64) (uint64, error)
}

// OnlineAllocator is the capability the dynamic online-insert path needs:
// allocation and in-place growth, both thread- and time-aware so the
// deferred-free lease and per-thread free lists work. *alloc.Dynamic
// satisfies this directly.
type OnlineAllocator interface {
	AllocEdges(n uint64, threadID int, now time.Time) (uint64, error)
	Grow(oldOff, oldSize, newSize uint64, threadID int, now time.Time) (newOff uint64, grew bool, err error)
	PendingFree(off, size uint64, now time.Time)
}

// dynamicBulkAdapter lets a single *alloc.Dynamic serve as the BulkAllocator
// for an initial load before online inserts begin, fixing the thread id and
// timestamp the bulk loader runs under.
type dynamicBulkAdapter struct {
	d        OnlineAllocator
	threadID int
	now      time.Time
}

func (a dynamicBulkAdapter) AllocEdges(n uint64) (uint64, error) {
	return a.d.AllocEdges(n, a.threadID, a.now)
}

// BulkAllocatorFromOnline adapts an OnlineAllocator (typically
// *alloc.Dynamic) to BulkAllocator for a one-time bulk load.
func BulkAllocatorFromOnline(d OnlineAllocator, threadID int, now time.Time) BulkAllocator {
	return dynamicBulkAdapter{d: d, threadID: threadID, now: now}
}

// Mapper owns the index and edge heap a set of triples is mapped into. It
// holds no memory itself; Heap and Index are views over a shard's
// registered region.
type Mapper struct {
	Index     *index.Index
	Heap      []byte
	Bulk      BulkAllocator
	Online    OnlineAllocator
	Versatile bool
}

// New constructs a Mapper. onlineAlloc may be nil for a store that never
// takes online inserts (static, bulk-load-only mode); bulkAlloc may be nil
// for a store that only ever takes online inserts.
func New(ix *index.Index, heap []byte, bulkAlloc BulkAllocator, onlineAlloc OnlineAllocator, versatile bool) *Mapper {
	return &Mapper{Index: ix, Heap: heap, Bulk: bulkAlloc, Online: onlineAlloc, Versatile: versatile}
}

// dedupeIDs returns vs with duplicate ids removed, preserving first-seen order
// (spec section 3: "value lists contain no duplicates").
func dedupeIDs(vs []ids.ID) []ids.ID {
	if len(vs) < 2 {
		return vs
	}
	seen := make(map[ids.ID]struct{}, len(vs))
	out := vs[:0:0]
	for _, v := range vs {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// insertSidList allocates a fresh sid-list block for key k holding vs and
// inserts the key. It is used only where the caller already knows k cannot
// exist yet (Phase A, Phase B materialization): a duplicate key here is the
// CapacityExhausted/logic-failure class of fatal error spec section 4.1
// describes, not a normal outcome.
func (m *Mapper) insertSidList(k kv.Key, vs []ids.ID) error {
	vs = dedupeIDs(vs)
	off, err := m.Bulk.AllocEdges(uint64(len(vs)))
	if err != nil {
		return fmt.Errorf("mapper: allocate %d edges for %v: %w", len(vs), k, err)
	}
	words := make([]uint32, len(vs))
	for i, v := range vs {
		words[i] = uint32(v)
	}
	kv.WriteEdges(m.Heap, off, words)
	ptr := kv.NewValuePointer(uint64(len(vs)), off, kv.SidList)
	if _, existed, err := m.Index.InsertKey(k, ptr, true); err != nil {
		return err
	} else if existed {
		return fmt.Errorf("mapper: key %v already present during bulk materialization", k)
	}
	return nil
}

// readSidList reads back the edges of a slot holding a sid-list value, as
// ids.ID, for merge/grow paths that need the live value set.
func readSidList(heap []byte, ptr kv.ValuePointer) []ids.ID {
	words := kv.ReadEdges(heap, ptr.Offset(), ptr.Size())
	out := make([]ids.ID, len(words))
	for i, w := range words {
		out[i] = ids.ID(w)
	}
	return out
}

func containsID(vs []ids.ID, v ids.ID) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
