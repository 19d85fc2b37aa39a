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

package mapper

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv"
)

// indexPartial is one worker's contribution to Phase B's derived indices,
// merged into the final maps after every worker finishes its bucket range.
type indexPartial struct {
	outSubjects map[ids.ID][]ids.ID // pid -> subjects, for (0,pid,OUT)
	inObjects   map[ids.ID][]ids.ID // pid -> objects, for (0,pid,IN)
	typeIndex   map[ids.ID][]ids.ID // type -> vertices, for (0,t,IN)

	allVertices []ids.ID
	allTypes    []ids.ID
	allPreds    []ids.ID
}

func newIndexPartial() *indexPartial {
	return &indexPartial{
		outSubjects: make(map[ids.ID][]ids.ID),
		inObjects:   make(map[ids.ID][]ids.ID),
		typeIndex:   make(map[ids.ID][]ids.ID),
	}
}

// BuildIndexes runs spec section 4.4's Phase B: a parallel scan over every
// occupied slot, building the predicate-index, type-index, and (if
// Versatile) the store-wide aggregate sets, then materializing each as a
// single key/value pair. It must run after LoadBulk and before any online
// inserts, since online inserts maintain these derived indices
// incrementally instead (see InsertTriple).
func (m *Mapper) BuildIndexes(ctx context.Context, numWorkers int) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	ix := m.Index
	totalBuckets := ix.NumMain + ix.NumIndirect
	if totalBuckets == 0 {
		return nil
	}

	bucketsPerWorker := (totalBuckets + uint64(numWorkers) - 1) / uint64(numWorkers)
	partials := make([]*indexPartial, numWorkers)

	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < numWorkers; w++ {
		w := w
		lo := uint64(w) * bucketsPerWorker
		hi := lo + bucketsPerWorker
		if hi > totalBuckets {
			hi = totalBuckets
		}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			partials[w] = m.scanBucketRange(lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	merged := newIndexPartial()
	for _, p := range partials {
		if p == nil {
			continue
		}
		for pid, vs := range p.outSubjects {
			merged.outSubjects[pid] = append(merged.outSubjects[pid], vs...)
		}
		for pid, vs := range p.inObjects {
			merged.inObjects[pid] = append(merged.inObjects[pid], vs...)
		}
		for t, vs := range p.typeIndex {
			merged.typeIndex[t] = append(merged.typeIndex[t], vs...)
		}
		merged.allVertices = append(merged.allVertices, p.allVertices...)
		merged.allTypes = append(merged.allTypes, p.allTypes...)
		merged.allPreds = append(merged.allPreds, p.allPreds...)
	}

	for pid, vs := range merged.outSubjects {
		if err := m.insertSidList(keyPredicateIndex(pid, ids.Out), vs); err != nil {
			return fmt.Errorf("mapper: predicate-index out side pid=%d: %w", pid, err)
		}
	}
	for pid, vs := range merged.inObjects {
		if err := m.insertSidList(keyPredicateIndex(pid, ids.In), vs); err != nil {
			return fmt.Errorf("mapper: predicate-index in side pid=%d: %w", pid, err)
		}
	}
	for t, vs := range merged.typeIndex {
		if err := m.insertSidList(keyTypeIndex(t), vs); err != nil {
			return fmt.Errorf("mapper: type-index t=%d: %w", t, err)
		}
	}

	if m.Versatile {
		if vs := dedupeIDs(merged.allVertices); len(vs) > 0 {
			if err := m.insertSidList(keyAllVertices(), vs); err != nil {
				return fmt.Errorf("mapper: versatile all-vertices: %w", err)
			}
		}
		if vs := dedupeIDs(merged.allTypes); len(vs) > 0 {
			if err := m.insertSidList(keyAllTypes(), vs); err != nil {
				return fmt.Errorf("mapper: versatile all-types: %w", err)
			}
		}
		if vs := dedupeIDs(merged.allPreds); len(vs) > 0 {
			if err := m.insertSidList(keyAllPredicates(), vs); err != nil {
				return fmt.Errorf("mapper: versatile all-predicates: %w", err)
			}
		}
	}
	return nil
}

// scanBucketRange walks buckets [lo, hi) of the index, classifying every
// occupied data slot per spec section 4.4, Phase B. It never sees a slot
// outside [lo, hi) because each main/indirect bucket's A-1 data slots are
// contiguous and bucket ranges partition the whole index exactly.
func (m *Mapper) scanBucketRange(lo, hi uint64) *indexPartial {
	p := newIndexPartial()
	ix := m.Index
	dataSlots := ix.Associativity - 1
	for bucket := lo; bucket < hi; bucket++ {
		base := bucket * uint64(ix.Associativity)
		for i := 0; i < dataSlots; i++ {
			s := kv.ReadSlotAt(ix.Region, base+uint64(i))
			if s.Empty() {
				continue
			}
			m.classifySlot(s, p)
		}
	}
	return p
}

// classifySlot feeds one occupied (vid, pid, dir) slot into the derived
// index maps being built. Slots whose pid is PredicateID are the
// versatile per-vertex predicate sets Phase A already wrote — they name a
// vertex's predicates, not a predicate's vertices, and are skipped here so
// they don't get folded into the predicate-index as if PredicateID were
// itself a real predicate.
func (m *Mapper) classifySlot(s kv.Slot, p *indexPartial) {
	vid, pid, dir := s.Key.VID(), s.Key.PID(), s.Key.Dir()
	if vid == 0 {
		return // an already-materialized (0, *, *) index key; not a base slot
	}
	p.allVertices = append(p.allVertices, vid)

	if pid == ids.PredicateID {
		return
	}

	if pid == ids.TypeID && dir == ids.Out {
		for _, t := range readSidList(m.Heap, s.Ptr) {
			p.typeIndex[t] = append(p.typeIndex[t], vid)
			p.allTypes = append(p.allTypes, t)
		}
		return
	}

	p.allPreds = append(p.allPreds, pid)
	if dir == ids.Out {
		p.outSubjects[pid] = append(p.outSubjects[pid], vid)
	} else {
		p.inObjects[pid] = append(p.inObjects[pid], vid)
	}
}
