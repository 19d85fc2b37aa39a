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
	"fmt"
	"time"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv"
)

// insertEdge appends val to the sid-list at key k, growing or allocating
// the block as needed, and reports whether val was newly added (false if
// dedup found it already present). It implements the shared mechanics
// insert_triple_out/in build on (spec section 4.4, "dynamic inserts").
func (m *Mapper) insertEdge(k kv.Key, val ids.ID, threadID int, now time.Time, dedup bool) (isNew bool, err error) {
	existing, found := m.Index.LookupLocal(k)
	if !found {
		off, err := m.Online.AllocEdges(1, threadID, now)
		if err != nil {
			return false, fmt.Errorf("mapper: allocate edge for %v: %w", k, err)
		}
		kv.WriteEdge(m.Heap, off, uint32(val))
		ptr := kv.NewValuePointer(1, off, kv.SidList)
		if _, existed, err := m.Index.InsertKey(k, ptr, false); err != nil {
			return false, err
		} else if existed {
			// Lost a race with another inserter between LookupLocal and
			// InsertKey; release the block we just allocated and retry,
			// which now takes the grow path below.
			m.Online.PendingFree(off, 1, now)
			return m.insertEdge(k, val, threadID, now, dedup)
		}
		return true, nil
	}

	oldSize := existing.Ptr.Size()
	if dedup {
		live := readSidList(m.Heap, existing.Ptr)
		if containsID(live, val) {
			return false, nil
		}
	}

	newOff, _, err := m.Online.Grow(existing.Ptr.Offset(), oldSize, oldSize+1, threadID, now)
	if err != nil {
		return false, fmt.Errorf("mapper: grow edge block for %v: %w", k, err)
	}
	kv.WriteEdge(m.Heap, newOff+oldSize, uint32(val))
	newPtr := kv.NewValuePointer(oldSize+1, newOff, existing.Ptr.Tag())
	if !m.Index.UpdateValue(k, newPtr) {
		return false, fmt.Errorf("mapper: key %v vanished during grow", k)
	}
	return true, nil
}

// maybeRecordVertex adds v to the versatile all-vertices aggregate the
// first time it is seen, skipping the append on every subsequent call via
// the same dedup-on-insert mechanics as any other sid-list.
func (m *Mapper) maybeRecordVertex(v ids.ID, threadID int, now time.Time) error {
	if !m.Versatile {
		return nil
	}
	_, err := m.insertEdge(keyAllVertices(), v, threadID, now, true)
	return err
}

// recordPredicateAt adds p to vertex vid's versatile predicate set in the
// given direction, once per (vid, dir, p).
func (m *Mapper) recordPredicateAt(vid ids.ID, dir ids.Direction, p ids.ID, threadID int, now time.Time) error {
	if !m.Versatile {
		return nil
	}
	_, err := m.insertEdge(keyPredicateSet(vid, dir), p, threadID, now, true)
	return err
}

// propagatePredicate maintains the predicate-index side (0, p, dir) and,
// the first time that predicate-index key is created at all, the
// versatile all-predicates aggregate. "Has corresponding index" is tested
// by probing the buddy key — the same predicate-index key in the opposite
// direction — per spec section 4.4: if the buddy already exists, p was
// already recorded into the aggregate when the buddy was first created.
func (m *Mapper) propagatePredicate(p ids.ID, dir ids.Direction, vid ids.ID, threadID int, now time.Time) error {
	k := keyPredicateIndex(p, dir)
	_, existedBefore := m.Index.LookupLocal(k)
	if _, err := m.insertEdge(k, vid, threadID, now, true); err != nil {
		return err
	}
	if existedBefore || !m.Versatile {
		return nil
	}
	if _, buddyExists := m.Index.LookupLocal(k.Buddy()); buddyExists {
		return nil
	}
	_, err := m.insertEdge(keyAllPredicates(), p, threadID, now, true)
	return err
}

// propagateType maintains the type-index key (0, t, IN) and, the first
// time a vertex of type t is recorded at all, the versatile all-types
// aggregate. Type-index has no buddy (there is no OUT-side type index), so
// the check is simply whether (0, t, IN) existed before this call.
func (m *Mapper) propagateType(t ids.ID, vid ids.ID, threadID int, now time.Time) error {
	k := keyTypeIndex(t)
	_, existedBefore := m.Index.LookupLocal(k)
	if _, err := m.insertEdge(k, vid, threadID, now, true); err != nil {
		return err
	}
	if existedBefore || !m.Versatile {
		return nil
	}
	_, err := m.insertEdge(keyAllTypes(), t, threadID, now, true)
	return err
}

// InsertTriple performs one dynamic online insert of (s, p, o), implementing
// the same invariants as the bulk loader incrementally (spec section 4.4).
// A type triple (p == TYPE_ID) never creates a (t, TYPE_ID, IN) in-edge —
// per spec section 3's invariant, it updates the type-index instead.
func (m *Mapper) InsertTriple(s, p, o ids.ID, threadID int, now time.Time, dedup bool) error {
	isNewOut, err := m.insertEdge(keyOut(s, p), o, threadID, now, dedup)
	if err != nil {
		return fmt.Errorf("mapper: insert (%d,%d,OUT): %w", s, p, err)
	}
	if err := m.maybeRecordVertex(s, threadID, now); err != nil {
		return err
	}

	if p == ids.TypeID {
		if !isNewOut {
			return nil
		}
		if err := m.recordPredicateAt(s, ids.Out, ids.TypeID, threadID, now); err != nil {
			return err
		}
		return m.propagateType(o, s, threadID, now)
	}

	isNewIn, err := m.insertEdge(keyIn(o, p), s, threadID, now, dedup)
	if err != nil {
		return fmt.Errorf("mapper: insert (%d,%d,IN): %w", o, p, err)
	}
	if err := m.maybeRecordVertex(o, threadID, now); err != nil {
		return err
	}

	if isNewOut {
		if err := m.propagatePredicate(p, ids.Out, s, threadID, now); err != nil {
			return err
		}
		if err := m.recordPredicateAt(s, ids.Out, p, threadID, now); err != nil {
			return err
		}
	}
	if isNewIn {
		if err := m.propagatePredicate(p, ids.In, o, threadID, now); err != nil {
			return err
		}
		if err := m.recordPredicateAt(o, ids.In, p, threadID, now); err != nil {
			return err
		}
	}
	return nil
}

// InsertAttribute sets vertex s's attribute a to val, allocating a fresh
// block (and deferred-freeing any prior one) if the word count changes.
func (m *Mapper) InsertAttribute(s, a ids.ID, val AttrValue, threadID int, now time.Time) error {
	k := keyOut(s, a)
	existing, found := m.Index.LookupLocal(k)
	if found && existing.Ptr.Size() == val.WordCount() {
		kv.WriteEdges(m.Heap, existing.Ptr.Offset(), val.Words())
		ptr := kv.NewValuePointer(val.WordCount(), existing.Ptr.Offset(), val.Tag())
		if !m.Index.UpdateValue(k, ptr) {
			return fmt.Errorf("mapper: attribute key %v vanished during overwrite", k)
		}
		return nil
	}

	off, err := m.Online.AllocEdges(val.WordCount(), threadID, now)
	if err != nil {
		return fmt.Errorf("mapper: allocate attribute (s=%d,a=%d): %w", s, a, err)
	}
	kv.WriteEdges(m.Heap, off, val.Words())
	ptr := kv.NewValuePointer(val.WordCount(), off, val.Tag())

	if !found {
		if _, existed, err := m.Index.InsertKey(k, ptr, false); err != nil {
			return err
		} else if existed {
			return m.InsertAttribute(s, a, val, threadID, now) // lost a race; retry as overwrite
		}
		return nil
	}

	if !m.Index.UpdateValue(k, ptr) {
		return fmt.Errorf("mapper: attribute key %v vanished during overwrite", k)
	}
	m.Online.PendingFree(existing.Ptr.Offset(), existing.Ptr.Size(), now)
	return nil
}
