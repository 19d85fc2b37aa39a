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

// Package ids defines the identifier space shared by every gstore component:
// fixed-width unsigned ids split into a small type/predicate range ("t/pid")
// and a large vertex range ("vid"), plus the direction flag used throughout
// the key schema.
package ids

// ID is a fixed-width unsigned identifier: either a t/pid or a vid, depending
// on its value relative to a Threshold.
type ID = uint64

// Direction marks whether a key denotes the out-edges or the in-edges of a
// vertex. The zero value is intentionally invalid so that a zero-valued Key
// (all fields zero) can be used as the "empty slot" sentinel without
// colliding with any direction-bearing key the schema ever materializes.
type Direction uint8

const (
	// DirInvalid is the zero value; it never appears in a published key.
	DirInvalid Direction = 0
	// Out marks a subject-to-object (forward) edge list.
	Out Direction = 1
	// In marks an object-to-subject (backward) edge list.
	In Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "OUT"
	case In:
		return "IN"
	default:
		return "INVALID"
	}
}

// Opposite returns the other direction; used to find a key's "buddy" index
// entry (spec section 4.4, "has corresponding index").
func (d Direction) Opposite() Direction {
	switch d {
	case Out:
		return In
	case In:
		return Out
	default:
		return DirInvalid
	}
}

const (
	// PredicateID is the sentinel t/pid naming the "versatile" predicate-set
	// index family: (vid, PredicateID, dir) lists the predicates used at vid
	// in that direction, and (0, PredicateID, OUT) lists every predicate seen.
	PredicateID ID = 0
	// TypeID is the sentinel t/pid naming the rdf:type relation: (vid,
	// TypeID, OUT) lists the types of vid, and (0, t, IN) lists the vertices
	// of type t.
	TypeID ID = 1

	// DefaultThreshold is the default boundary between the t/pid range and
	// the vid range: ids below it are t/pids, ids at or above it are vids.
	DefaultThreshold ID = 1 << 17
)

// IsVertex reports whether id falls in the vertex range under threshold.
func IsVertex(id ID, threshold ID) bool { return id >= threshold }

// IsTPID reports whether id falls in the type/predicate range under threshold.
func IsTPID(id ID, threshold ID) bool { return id < threshold }
