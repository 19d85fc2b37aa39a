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
	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv"
)

// keyOut is the normal out-edge / attribute key (vid, pid, OUT).
func keyOut(vid, pid ids.ID) kv.Key { return kv.NewKey(vid, pid, ids.Out) }

// keyIn is the normal in-edge key (vid, pid, IN).
func keyIn(vid, pid ids.ID) kv.Key { return kv.NewKey(vid, pid, ids.In) }

// keyPredicateIndex is the predicate-index key (0, pid, dir) — "subjects
// having pid" when dir is OUT, "objects having pid" when dir is IN.
func keyPredicateIndex(pid ids.ID, dir ids.Direction) kv.Key { return kv.NewKey(0, pid, dir) }

// keyTypeIndex is the type-index key (0, t, IN) — vertices of type t.
func keyTypeIndex(t ids.ID) kv.Key { return kv.NewKey(0, t, ids.In) }

// keyPredicateSet is the versatile per-vertex predicate-set key (vid,
// PREDICATE_ID, dir) — pids used at vid in that direction.
func keyPredicateSet(vid ids.ID, dir ids.Direction) kv.Key {
	return kv.NewKey(vid, ids.PredicateID, dir)
}

// keyAllVertices, keyAllTypes, keyAllPredicates are the versatile
// store-wide aggregate keys of spec section 3.
func keyAllVertices() kv.Key   { return kv.NewKey(0, ids.TypeID, ids.In) }
func keyAllTypes() kv.Key      { return kv.NewKey(0, ids.TypeID, ids.Out) }
func keyAllPredicates() kv.Key { return kv.NewKey(0, ids.PredicateID, ids.Out) }

func writeWords(heap []byte, off uint64, words []uint32) {
	kv.WriteEdges(heap, off, words)
}

func rawPointer(size, offset uint64, tag kv.TypeTag) kv.ValuePointer {
	return kv.NewValuePointer(size, offset, tag)
}
