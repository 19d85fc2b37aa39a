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

package kv

// BlockCapacity returns the buddy-class capacity, in edge slots, of a
// dynamic-mode block holding n data edges: the smallest power of two that
// is at least n+1, reserving one trailing slot for the size tag (spec
// section 4.2). BlockCapacity(0) is 1, the smallest representable class.
func BlockCapacity(n uint64) uint64 {
	need := n + 1
	cap := uint64(1)
	for cap < need {
		cap <<= 1
	}
	return cap
}

// BuddyClass returns the buddy-class index (log2 of BlockCapacity(n)) used
// to pick a free list.
func BuddyClass(n uint64) int {
	c := BlockCapacity(n)
	class := 0
	for c > 1 {
		c >>= 1
		class++
	}
	return class
}

// ClassCapacity returns the block capacity, in edge slots, for a given
// buddy-class index.
func ClassCapacity(class int) uint64 {
	return uint64(1) << uint(class)
}
