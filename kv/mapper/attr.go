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
	"math"

	"github.com/latticegraph/gstore/kv"
)

// AttrValue is a typed attribute literal: an int, float, or double, packed
// into 32-bit edge-heap words the same way a sid-list's elements are, so
// attribute reads reuse the same remote read protocol as edge lists (spec
// section 4.5, "attribute reads follow the same protocol ... reinterpreted
// according to ptr.type"). Doubles need two words; int and float need one.
type AttrValue struct {
	tag   kv.TypeTag
	words [2]uint32
}

func NewIntAttr(v int32) AttrValue {
	return AttrValue{tag: kv.Int, words: [2]uint32{uint32(v), 0}}
}

func NewFloatAttr(v float32) AttrValue {
	return AttrValue{tag: kv.Float, words: [2]uint32{math.Float32bits(v), 0}}
}

func NewDoubleAttr(v float64) AttrValue {
	bits := math.Float64bits(v)
	return AttrValue{tag: kv.Double, words: [2]uint32{uint32(bits), uint32(bits >> 32)}}
}

// Tag reports which of {int, float, double} this value holds.
func (a AttrValue) Tag() kv.TypeTag { return a.tag }

// WordCount is how many 32-bit edge-heap words this value occupies.
func (a AttrValue) WordCount() uint64 {
	if a.tag == kv.Double {
		return 2
	}
	return 1
}

// Words returns the packed edge-heap words for this value.
func (a AttrValue) Words() []uint32 { return a.words[:a.WordCount()] }

// DecodeAttrValue reconstructs an AttrValue from a value pointer's tag and
// its backing words, for the read path. It reports ok=false for a tag
// outside {int, float, double} — spec section 7's UnsupportedAttrType,
// logged by the caller with has_value=false rather than surfaced as an
// error.
func DecodeAttrValue(ptr kv.ValuePointer, heap []byte) (AttrValue, bool) {
	if !ptr.Tag().Valid() || ptr.Tag() == kv.SidList {
		return AttrValue{}, false
	}
	words := kv.ReadEdges(heap, ptr.Offset(), ptr.Size())
	var v AttrValue
	v.tag = ptr.Tag()
	copy(v.words[:], words)
	return v, true
}

func (a AttrValue) String() string {
	switch a.tag {
	case kv.Int:
		return fmt.Sprintf("int(%d)", int32(a.words[0]))
	case kv.Float:
		return fmt.Sprintf("float(%v)", math.Float32frombits(a.words[0]))
	case kv.Double:
		bits := uint64(a.words[0]) | uint64(a.words[1])<<32
		return fmt.Sprintf("double(%v)", math.Float64frombits(bits))
	default:
		return "invalid"
	}
}
