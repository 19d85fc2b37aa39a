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

// Package adaptor implements the adaptor facade of spec section 4.7: the
// single entry point a worker thread uses for both key resolution (local
// index read or remote read protocol) and shard-to-shard messaging (the
// ring transport), so call sites never branch on local-vs-remote or
// ring-vs-TCP themselves.
package adaptor

import (
	"context"
	"fmt"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv"
	"github.com/latticegraph/gstore/kv/index"
	"github.com/latticegraph/gstore/kv/remote"
	"github.com/latticegraph/gstore/shard"
	"github.com/latticegraph/gstore/transport/ring"
)

// Bundle is the variant-tagged message spec section 4.7 sends: one type
// byte naming the payload's shape (query, result rows, ...) followed by
// its raw bytes. The adaptor never interprets Payload itself; that is the
// query engine's job as an external collaborator (spec section 1).
type Bundle struct {
	Type    byte
	Payload []byte
}

// Facade is the adaptor of spec section 4.7, owned by one shard process
// and shared by every engine thread on it.
type Facade struct {
	Self       int
	NumServers int

	Local     *index.Index
	LocalHeap []byte

	Remote    *remote.Reader
	Transport *ring.Transport
	Region    *shard.Region
}

// New constructs a Facade. remote may resolve keys over either an RDMA
// fabric or the TCP fallback fabric — the Facade is written only against
// the rdma.Fabric/ring.Transport interfaces, so the choice of which is
// live is made once at construction (spec section 4.7's "chooses the
// one-sided-backed ring if the fabric is up; otherwise falls back to a TCP
// ring"), not per call.
func New(self, numServers int, local *index.Index, localHeap []byte, rdr *remote.Reader, transport *ring.Transport, region *shard.Region) *Facade {
	return &Facade{
		Self: self, NumServers: numServers,
		Local: local, LocalHeap: localHeap,
		Remote: rdr, Transport: transport, Region: region,
	}
}

// Lookup resolves key (vid, pid, dir), reading the local index directly if
// vid's shard is this one, or the remote read protocol otherwise (spec
// section 4.5). threadID selects the caller's scratch buffer for staging a
// remote read; it is ignored for a local lookup.
func (f *Facade) Lookup(ctx context.Context, threadID int, vid, pid ids.ID, dir ids.Direction) (words []uint32, tag kv.TypeTag, found bool, err error) {
	k := kv.NewKey(vid, pid, dir)
	peer := remote.PeerFor(vid, f.NumServers)
	if peer == f.Self {
		slot, ok := f.Local.LookupLocal(k)
		if !ok {
			return nil, 0, false, nil
		}
		return kv.ReadEdges(f.LocalHeap, slot.Ptr.Offset(), slot.Ptr.Size()), slot.Ptr.Tag(), true, nil
	}

	scratch := f.Region.Scratch(threadID)
	res, ok, err := f.Remote.Lookup(ctx, peer, k, scratch)
	if err != nil {
		return nil, 0, false, err
	}
	if !ok {
		return nil, 0, false, nil
	}
	return res.Words, res.Tag, true, nil
}

// Send frames msgType and payload into the ring (dstShard, dstThread)
// reads from. It returns false, nil on overflow, per spec section 4.7 —
// the caller retries or backs off.
func (f *Facade) Send(ctx context.Context, srcThread, dstShard, dstThread int, msgType byte, payload []byte) (bool, error) {
	framed := make([]byte, 1+len(payload))
	framed[0] = msgType
	copy(framed[1:], payload)
	return f.Transport.Send(ctx, srcThread, dstShard, dstThread, framed)
}

// TryRecv is the non-blocking variant of Recv.
func (f *Facade) TryRecv(ctx context.Context, myThread int) (Bundle, bool, error) {
	raw, ok, err := f.Transport.TryRecv(ctx, myThread)
	if err != nil || !ok {
		return Bundle{}, ok, err
	}
	return decodeBundle(raw)
}

// Recv blocks until a message for myThread arrives, round-robin across
// writer shards, or ctx is done.
func (f *Facade) Recv(ctx context.Context, myThread int) (Bundle, error) {
	raw, err := f.Transport.Recv(ctx, myThread)
	if err != nil {
		return Bundle{}, err
	}
	b, _, err := decodeBundle(raw)
	return b, err
}

func decodeBundle(raw []byte) (Bundle, bool, error) {
	if len(raw) < 1 {
		return Bundle{}, false, fmt.Errorf("adaptor: frame of %d bytes too short for a type byte", len(raw))
	}
	return Bundle{Type: raw[0], Payload: raw[1:]}, true, nil
}
