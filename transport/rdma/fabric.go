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

// Package rdma factors the one-sided remote-memory primitive as a small
// capability interface (spec section 9, "Replacing the one-sided fabric
// primitive"): synchronous Read/Write against a registered byte region on
// a named peer shard. The ring transport and the remote read protocol are
// written against this interface only — never against RDMA-specific
// semantics beyond "writes eventually appear, with the footer strictly
// ordered after the body".
package rdma

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is spec section 7's RemoteUnavailable: the fabric is not
// initialized for this peer, or the peer is unreachable. remote.Reader.Lookup
// returns it to its caller as an error, not as a not-found result.
var ErrUnavailable = errors.New("rdma: remote shard unavailable")

// Fabric is the one-sided remote-memory capability every transport in this
// repository is built on: a synchronous byte-range read or write against a
// peer shard's registered region, addressed by a flat offset.
type Fabric interface {
	// Read copies len(buf) bytes from peer's region, starting at
	// remoteOff, into buf.
	Read(ctx context.Context, peer int, remoteOff uint64, buf []byte) error
	// Write copies buf into peer's region starting at remoteOff.
	Write(ctx context.Context, peer int, remoteOff uint64, buf []byte) error
	// Self reports which shard id this fabric instance is reachable as —
	// used by callers that need to address a loop-back write to
	// themselves instead of going out over the wire.
	Self() int
}

// UnreachablePeerError wraps ErrUnavailable with the peer id that could not
// be reached, for logging.
type UnreachablePeerError struct {
	Peer int
	Err  error
}

func (e *UnreachablePeerError) Error() string {
	return fmt.Sprintf("rdma: peer %d unreachable: %v", e.Peer, e.Err)
}

func (e *UnreachablePeerError) Unwrap() error { return e.Err }

func (e *UnreachablePeerError) Is(target error) bool { return target == ErrUnavailable }
