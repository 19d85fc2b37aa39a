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

// Package ring implements the shard-to-shard message transport of spec
// section 4.6: a bounded byte ring per (reader thread, writer shard) pair,
// framed as [size][payload, zero-padded to 8 bytes][size], carried over a
// one-sided rdma.Fabric write and read back locally by the owning reader
// thread.
package ring

import "errors"

// headerSize is the width of the frame's leading and trailing size words.
const headerSize = 8

// ErrOverflow is spec section 7's RingOverflow: a send would advance the
// tail past what the reader has acknowledged consuming. The caller retries
// or backs off; it is never treated as fatal.
var ErrOverflow = errors.New("ring: send would overflow, reader has not caught up")

// round8 rounds n up to the next multiple of 8, the payload padding rule
// spec section 4.6 specifies so header and footer words never straddle a
// non-8-aligned boundary.
func round8(n int) int {
	return (n + 7) &^ 7
}

// frameSize is the total ring-byte cost of a payload of n bytes: leading
// size word, zero-padded payload, trailing size word.
func frameSize(n int) int {
	return headerSize + round8(n) + headerSize
}
