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

	"github.com/latticegraph/gstore/ids"
)

// BulkStats reports what a bulk load did, for tests and for cmd/gstored's
// load-time logging.
type BulkStats struct {
	OutKeys  int
	InKeys   int
	Versatile int
}

// LoadBulk ingests spo (sorted by s, p, o) and ops (sorted by o, p, s, with
// the leading run of p==TYPE_ID triples clustered at the front) per spec
// section 4.4, Phase A. It assumes the index is empty: every key it inserts
// must not already exist.
func (m *Mapper) LoadBulk(spo, ops []Triple) (BulkStats, error) {
	var stats BulkStats

	// Step 2: spo runs of equal (s, p) become (s, p, OUT) -> objects. This
	// also produces the type triples' (s, TYPE_ID, OUT) -> types entry,
	// since a type triple is just (s, TYPE_ID, t) in the same stream.
	var versS ids.ID
	var versPreds []ids.ID
	haveVersS := false

	flushVersOut := func() error {
		if !m.Versatile || !haveVersS || len(versPreds) == 0 {
			return nil
		}
		k := keyPredicateSet(versS, ids.Out)
		if err := m.insertSidList(k, versPreds); err != nil {
			return err
		}
		stats.Versatile++
		return nil
	}

	for i := 0; i < len(spo); {
		j := i + 1
		for j < len(spo) && spo[j].S == spo[i].S && spo[j].P == spo[i].P {
			j++
		}
		s, p := spo[i].S, spo[i].P
		objs := make([]ids.ID, 0, j-i)
		for _, t := range spo[i:j] {
			objs = append(objs, t.O)
		}
		if err := m.insertSidList(keyOut(s, p), objs); err != nil {
			return stats, fmt.Errorf("mapper: spo run (s=%d,p=%d): %w", s, p, err)
		}
		stats.OutKeys++

		if m.Versatile {
			if haveVersS && s != versS {
				if err := flushVersOut(); err != nil {
					return stats, err
				}
				versPreds = versPreds[:0]
			}
			versS, haveVersS = s, true
			versPreds = append(versPreds, p)
		}
		i = j
	}
	if err := flushVersOut(); err != nil {
		return stats, err
	}

	// Step 1/3: skip the leading type bucket of ops, then ops runs of equal
	// (o, p) become (o, p, IN) -> subjects.
	start := 0
	for start < len(ops) && ops[start].P == ids.TypeID {
		start++
	}

	var versO ids.ID
	var versInPreds []ids.ID
	haveVersO := false

	flushVersIn := func() error {
		if !m.Versatile || !haveVersO || len(versInPreds) == 0 {
			return nil
		}
		k := keyPredicateSet(versO, ids.In)
		if err := m.insertSidList(k, versInPreds); err != nil {
			return err
		}
		stats.Versatile++
		return nil
	}

	for i := start; i < len(ops); {
		j := i + 1
		for j < len(ops) && ops[j].O == ops[i].O && ops[j].P == ops[i].P {
			j++
		}
		o, p := ops[i].O, ops[i].P
		subs := make([]ids.ID, 0, j-i)
		for _, t := range ops[i:j] {
			subs = append(subs, t.S)
		}
		if err := m.insertSidList(keyIn(o, p), subs); err != nil {
			return stats, fmt.Errorf("mapper: ops run (o=%d,p=%d): %w", o, p, err)
		}
		stats.InKeys++

		if m.Versatile {
			if haveVersO && o != versO {
				if err := flushVersIn(); err != nil {
					return stats, err
				}
				versInPreds = versInPreds[:0]
			}
			versO, haveVersO = o, true
			versInPreds = append(versInPreds, p)
		}
		i = j
	}
	if err := flushVersIn(); err != nil {
		return stats, err
	}

	return stats, nil
}

// LoadAttributes ingests a sorted stream of (subject, attribute, value)
// triples, each becoming a single-entry (s, a, OUT) key (spec section 6,
// "a sequence of (s, a, v:{int|float|double}) tuples").
func (m *Mapper) LoadAttributes(attrs []Attribute) error {
	for _, a := range attrs {
		k := keyOut(a.S, a.A)
		off, err := m.Bulk.AllocEdges(a.Val.WordCount())
		if err != nil {
			return fmt.Errorf("mapper: allocate attribute (s=%d,a=%d): %w", a.S, a.A, err)
		}
		writeWords(m.Heap, off, a.Val.Words())
		ptr := rawPointer(a.Val.WordCount(), off, a.Val.Tag())
		if _, existed, err := m.Index.InsertKey(k, ptr, true); err != nil {
			return err
		} else if existed {
			return fmt.Errorf("mapper: duplicate attribute key %v", k)
		}
	}
	return nil
}
