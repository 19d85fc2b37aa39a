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

// Package verify implements the offline integrity verifier of spec
// section 4.8: an exhaustive cross-check of every occupied slot against
// the data-model invariants in spec section 3.
package verify

import (
	"fmt"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv"
	"github.com/latticegraph/gstore/kv/index"
	"github.com/latticegraph/gstore/metrics"
)

// Violation names one broken invariant found at a specific slot.
type Violation struct {
	Kind string
	Key  kv.Key
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s at %v: %s", v.Kind, v.Key, v.Detail)
}

// Report is the outcome of a verifier run. Spec section 7: IntegrityViolation
// is "reported; does not abort" — Report never carries an error, only a
// (possibly empty) violation list.
type Report struct {
	Violations []Violation
}

// Pass reports whether the store had no invariant violations.
func (r Report) Pass() bool { return len(r.Violations) == 0 }

func (r *Report) add(kind string, k kv.Key, detail string) {
	r.Violations = append(r.Violations, Violation{Kind: kind, Key: k, Detail: detail})
}

// snapshot is a full in-memory copy of every occupied slot, built once by
// ScanAll so every check below probes the same consistent view instead of
// racing a concurrent writer slot by slot.
type snapshot struct {
	byKey map[uint64]kv.Slot
	heap  []byte
}

func (s *snapshot) lookup(k kv.Key) (kv.Slot, bool) {
	slot, ok := s.byKey[k.Raw()]
	return slot, ok
}

func (s *snapshot) values(ptr kv.ValuePointer) []ids.ID {
	words := kv.ReadEdges(s.heap, ptr.Offset(), ptr.Size())
	out := make([]ids.ID, len(words))
	for i, w := range words {
		out[i] = ids.ID(w)
	}
	return out
}

// Run scans every occupied slot in ix and checks it against the invariants
// of spec section 3: no duplicate keys, forward/backward edge symmetry
// (except TYPE_ID), predicate-index and type-index completeness, versatile
// set completeness (if versatile is true), and no duplicate values within
// a value list.
func Run(ix *index.Index, heap []byte, versatile bool) Report {
	snap := &snapshot{byKey: make(map[uint64]kv.Slot), heap: heap}
	var report Report

	var dupKeys []kv.Key
	ix.ScanAll(func(_ uint64, s kv.Slot) bool {
		if _, exists := snap.byKey[s.Key.Raw()]; exists {
			dupKeys = append(dupKeys, s.Key)
		}
		snap.byKey[s.Key.Raw()] = s
		return true
	})
	for _, k := range dupKeys {
		report.add("DuplicateKey", k, "key appears more than once across the index and its chain")
	}

	// Type values share the (0, x, dir) key shape predicate-index entries
	// use, but (0, t, IN) holds the type-index aggregate for t, not a
	// predicate's object set — collect every declared type value up front
	// so checkPredicateIndex can tell the two apart.
	typeValues := make(map[ids.ID]struct{})
	for _, s := range snap.byKey {
		vid, pid, dir := s.Key.VID(), s.Key.PID(), s.Key.Dir()
		if vid != 0 && pid == ids.TypeID && dir == ids.Out {
			for _, t := range snap.values(s.Ptr) {
				typeValues[t] = struct{}{}
			}
		}
	}

	for _, s := range snap.byKey {
		checkNoDuplicateValues(snap, s, &report)
		checkForwardBackward(snap, s, &report)
		checkPredicateIndex(snap, s, typeValues, &report)
		checkTypeIndex(snap, s, &report)
		if versatile {
			checkVersatile(snap, s, &report)
		}
	}
	for _, v := range report.Violations {
		metrics.IntegrityViolations.WithLabelValues(v.Kind).Inc()
	}
	return report
}

func checkNoDuplicateValues(snap *snapshot, s kv.Slot, report *Report) {
	if s.Ptr.Tag() != kv.SidList {
		return
	}
	vals := snap.values(s.Ptr)
	seen := make(map[ids.ID]struct{}, len(vals))
	for _, v := range vals {
		if _, dup := seen[v]; dup {
			report.add("DuplicateValue", s.Key, fmt.Sprintf("value %d repeated in value list", v))
		}
		seen[v] = struct{}{}
	}
}

// checkForwardBackward implements spec section 3's "for every normal
// out-edge (s,p,OUT)->o, there is a matching in-edge (o,p,IN)->s, except
// when p = TYPE_ID".
func checkForwardBackward(snap *snapshot, s kv.Slot, report *Report) {
	vid, pid, dir := s.Key.VID(), s.Key.PID(), s.Key.Dir()
	if vid == 0 || pid == ids.PredicateID || pid == ids.TypeID || s.Ptr.Tag() != kv.SidList {
		return
	}
	var buddyDir ids.Direction
	if dir == ids.Out {
		buddyDir = ids.In
	} else {
		buddyDir = ids.Out
	}
	for _, other := range snap.values(s.Ptr) {
		buddyKey := kv.NewKey(other, pid, buddyDir)
		buddySlot, ok := snap.lookup(buddyKey)
		if !ok {
			report.add("MissingBuddyEdge", s.Key, fmt.Sprintf("no %v for value %d", buddyKey, vid))
			continue
		}
		if !containsID(snap.values(buddySlot.Ptr), vid) {
			report.add("MissingBuddyEdge", s.Key, fmt.Sprintf("%v exists but does not list %d", buddyKey, vid))
		}
	}
}

// checkPredicateIndex implements "for every predicate-index entry
// (0,p,OUT)->s, (s,p,OUT) exists; symmetric for IN".
func checkPredicateIndex(snap *snapshot, s kv.Slot, typeValues map[ids.ID]struct{}, report *Report) {
	vid, pid, dir := s.Key.VID(), s.Key.PID(), s.Key.Dir()
	if vid != 0 || pid == ids.PredicateID || pid == ids.TypeID {
		return
	}
	if _, isType := typeValues[pid]; isType {
		return
	}
	for _, v := range snap.values(s.Ptr) {
		edgeKey := kv.NewKey(v, pid, dir)
		if _, ok := snap.lookup(edgeKey); !ok {
			report.add("MissingEdgeForIndex", s.Key, fmt.Sprintf("no %v for indexed vertex %d", edgeKey, v))
		}
	}
}

// checkTypeIndex implements "for every type-index entry (0,t,IN)->v,
// (v,TYPE_ID,OUT) contains t". It runs from the (vid,TYPE_ID,OUT) side,
// since that is where the candidate types t live.
func checkTypeIndex(snap *snapshot, s kv.Slot, report *Report) {
	vid, pid, dir := s.Key.VID(), s.Key.PID(), s.Key.Dir()
	if vid == 0 || pid != ids.TypeID || dir != ids.Out {
		return
	}
	for _, t := range snap.values(s.Ptr) {
		typeSlot, ok := snap.lookup(kv.NewKey(0, t, ids.In))
		if !ok {
			report.add("MissingTypeIndex", s.Key, fmt.Sprintf("no (0,%d,IN) for type %d", t, t))
			continue
		}
		if !containsID(snap.values(typeSlot.Ptr), vid) {
			report.add("MissingTypeIndex", s.Key, fmt.Sprintf("(0,%d,IN) exists but does not list %d", t, vid))
		}
	}
}

// checkVersatile implements spec section 3's "versatile" index family
// completeness: every vertex's predicate set, and the three store-wide
// aggregates, must be present and complete relative to the base slots.
func checkVersatile(snap *snapshot, s kv.Slot, report *Report) {
	vid, pid, dir := s.Key.VID(), s.Key.PID(), s.Key.Dir()
	if vid == 0 || pid == ids.PredicateID || s.Ptr.Tag() != kv.SidList {
		// Typed attributes ((vid, a, OUT) holding an int/float/double) are
		// not part of the versatile schema extension; only sid-list edges
		// and type lists feed the predicate/type aggregates.
		return
	}

	allVertices, ok := snap.lookup(kv.NewKey(0, ids.TypeID, ids.In))
	if !ok || !containsID(snap.values(allVertices.Ptr), vid) {
		report.add("MissingVersatileAllVertices", s.Key, fmt.Sprintf("vertex %d absent from (0,TYPE_ID,IN)", vid))
	}

	if pid == ids.TypeID && dir == ids.Out {
		allTypes, ok := snap.lookup(kv.NewKey(0, ids.TypeID, ids.Out))
		if !ok {
			report.add("MissingVersatileAllTypes", s.Key, "no (0,TYPE_ID,OUT) aggregate present")
			return
		}
		for _, t := range snap.values(s.Ptr) {
			if !containsID(snap.values(allTypes.Ptr), t) {
				report.add("MissingVersatileAllTypes", s.Key, fmt.Sprintf("type %d absent from (0,TYPE_ID,OUT)", t))
			}
		}
		return
	}

	predSet, ok := snap.lookup(kv.NewKey(vid, ids.PredicateID, dir))
	if !ok || !containsID(snap.values(predSet.Ptr), pid) {
		report.add("MissingVersatilePredicateSet", s.Key, fmt.Sprintf("predicate %d absent from (%d,PREDICATE_ID,%s)", pid, vid, dir))
	}

	allPreds, ok := snap.lookup(kv.NewKey(0, ids.PredicateID, ids.Out))
	if !ok || !containsID(snap.values(allPreds.Ptr), pid) {
		report.add("MissingVersatileAllPredicates", s.Key, fmt.Sprintf("predicate %d absent from (0,PREDICATE_ID,OUT)", pid))
	}
}

func containsID(vs []ids.ID, v ids.ID) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}
