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

// Package kv defines the packed key/value-pointer/slot schema that the
// local hash index, the edge allocator, and the remote read protocol all
// share: a 64-bit key, a 64-bit value pointer, and the 128-bit slot that
// pairs them.
package kv

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/latticegraph/gstore/ids"
)

// Bit widths of the three packed key fields. dirBits is 2 so that Out (1)
// and In (2) are both nonzero — the only all-zero key is the reserved empty
// slot marker, even though the schema legitimately uses vid=0 and pid=0
// (PredicateID) together in several "versatile" index keys.
const (
	dirBits = 2
	pidBits = 17
	vidBits = 64 - dirBits - pidBits // 45

	dirShift = 0
	pidShift = dirBits
	vidShift = dirBits + pidBits

	dirMask = (uint64(1) << dirBits) - 1
	pidMask = (uint64(1) << pidBits) - 1
	vidMask = (uint64(1) << vidBits) - 1
)

// MaxPID and MaxVID bound the values NewKey will accept without truncation.
const (
	MaxPID = pidMask
	MaxVID = vidMask
)

// KeyTruncationError is the fatal condition raised when a key field does not
// fit in its packed range (spec section 7, "KeyTruncation"). It is a
// programmer error, never a runtime condition a caller should recover from
// in the normal path.
type KeyTruncationError struct {
	Field string
	Value uint64
	Max   uint64
}

func (e *KeyTruncationError) Error() string {
	return fmt.Sprintf("kv: key field %s=%d exceeds max %d", e.Field, e.Value, e.Max)
}

// Key is the packed (vid, pid, dir) tuple used throughout the index. The
// zero Key is the reserved "empty slot" marker.
type Key struct {
	raw uint64
}

// NewKey packs (vid, pid, dir) into a Key. It panics with a
// *KeyTruncationError if any field does not fit in its reserved bit width —
// per spec section 7 this is a fatal, structural condition, not one a
// caller is expected to recover from.
func NewKey(vid, pid ids.ID, dir ids.Direction) Key {
	if pid > MaxPID {
		panic(&KeyTruncationError{Field: "pid", Value: pid, Max: MaxPID})
	}
	if vid > MaxVID {
		panic(&KeyTruncationError{Field: "vid", Value: vid, Max: MaxVID})
	}
	if dir != ids.Out && dir != ids.In {
		panic(&KeyTruncationError{Field: "dir", Value: uint64(dir), Max: dirMask})
	}
	return Key{raw: (vid << vidShift) | (pid << pidShift) | uint64(dir)}
}

// RawKey reconstructs a Key from its packed 64-bit representation, as read
// back off the wire or out of a slot. It does not validate the direction
// field, since an empty slot (raw==0) is a legitimate value to round-trip.
func RawKey(raw uint64) Key { return Key{raw: raw} }

// IsEmpty reports whether this is the reserved empty-slot marker.
func (k Key) IsEmpty() bool { return k.raw == 0 }

// VID returns the packed vertex-id field.
func (k Key) VID() ids.ID { return (k.raw >> vidShift) & vidMask }

// PID returns the packed type/predicate-id field.
func (k Key) PID() ids.ID { return (k.raw >> pidShift) & pidMask }

// Dir returns the packed direction field.
func (k Key) Dir() ids.Direction { return ids.Direction(k.raw & dirMask) }

// Raw returns the packed 64-bit representation, as stored in a slot or sent
// over the wire.
func (k Key) Raw() uint64 { return k.raw }

// Equal reports whether two keys have identical vid, pid, and dir fields —
// equivalently, identical packed representations.
func (k Key) Equal(o Key) bool { return k.raw == o.raw }

// Buddy returns the key for the opposite-direction index entry that the
// dynamic insert path probes to test "has corresponding index" (spec
// section 4.4).
func (k Key) Buddy() Key { return Key{raw: (k.raw &^ dirMask) | uint64(k.Dir().Opposite())} }

// Hash returns a stable 64-bit scramble of the packed key, as used to
// locate k's main bucket and to key the remote vertex cache.
func (k Key) Hash() uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], k.raw)
	return xxhash.Sum64(buf[:])
}

func (k Key) String() string {
	return fmt.Sprintf("(%d,%d,%s)", k.VID(), k.PID(), k.Dir())
}
