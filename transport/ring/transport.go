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

package ring

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/latticegraph/gstore/shard"
	"github.com/latticegraph/gstore/transport/rdma"
)

// Transport owns every ring this shard either writes into (on peer shards)
// or reads from (in its own region), for every local engine thread. It is
// the thing spec section 4.7's adaptor facade is built on.
type Transport struct {
	fabric rdma.Fabric
	region *shard.Region
	self   int

	numEngines int
	numServers int

	// writers[dstShard][dstThread] sends from any local thread to that
	// remote or local reader.
	writers [][]*Writer
	// readers[myThread][writerShard] drains messages this shard's thread
	// myThread is the exclusive reader of, fed by writerShard.
	readers [][]*Reader

	rr []int // per-thread round-robin cursor over writer shards
}

// New builds a Transport over region, using fabric for every cross-shard
// byte movement. region.Layout, which every shard of the cluster shares, is
// also used to address rings and mirrors on shards this process doesn't
// hold a *shard.Region for.
func New(fabric rdma.Fabric, region *shard.Region) *Transport {
	l := region.Layout
	t := &Transport{
		fabric:     fabric,
		region:     region,
		self:       fabric.Self(),
		numEngines: l.NumEngines,
		numServers: l.NumServers,
		rr:         make([]int, l.NumEngines),
	}

	t.writers = make([][]*Writer, l.NumServers)
	for dstShard := 0; dstShard < l.NumServers; dstShard++ {
		t.writers[dstShard] = make([]*Writer, l.NumEngines)
		for dstThread := 0; dstThread < l.NumEngines; dstThread++ {
			ringOff := l.RingOffsetFor(dstThread, t.self)
			mirrorBuf := region.Mirror(dstThread, dstShard)
			t.writers[dstShard][dstThread] = NewWriter(fabric, dstShard, dstThread, ringOff, l.RingSize, mirrorBuf)
		}
	}

	t.readers = make([][]*Reader, l.NumEngines)
	for myThread := 0; myThread < l.NumEngines; myThread++ {
		t.readers[myThread] = make([]*Reader, l.NumServers)
		for writerShard := 0; writerShard < l.NumServers; writerShard++ {
			buf := region.Ring(myThread, writerShard)
			myThread, writerShard, self := myThread, writerShard, t.self
			publish := func(ctx context.Context, newHead uint64) error {
				var b [8]byte
				binary.LittleEndian.PutUint64(b[:], newHead)
				off := l.MirrorOffsetFor(myThread, self)
				return fabric.Write(ctx, writerShard, off, b[:])
			}
			t.readers[myThread][writerShard] = NewReader(buf, l.RingSize, publish)
		}
	}
	return t
}

// Send frames payload and writes it into the ring that (dstShard,
// dstThread) reads from, staging through srcThread's own scratch buffer.
// It reports false, nil on overflow — the caller retries.
func (t *Transport) Send(ctx context.Context, srcThread, dstShard, dstThread int, payload []byte) (bool, error) {
	if dstShard < 0 || dstShard >= len(t.writers) || dstThread < 0 || dstThread >= len(t.writers[dstShard]) {
		return false, fmt.Errorf("ring: send target (shard=%d,thread=%d) out of range", dstShard, dstThread)
	}
	scratch := t.region.Scratch(srcThread)
	need := frameSize(len(payload))
	if len(scratch) < need {
		return false, fmt.Errorf("ring: payload of %d bytes needs %d scratch bytes, have %d", len(payload), need, len(scratch))
	}
	return t.writers[dstShard][dstThread].Send(ctx, scratch, payload)
}

// TryRecv drains at most one message for myThread, scanning writer shards
// round-robin starting after the last shard served (spec section 4.6:
// "across channels, ordering is unspecified; the reader schedules them
// round-robin").
func (t *Transport) TryRecv(ctx context.Context, myThread int) ([]byte, bool, error) {
	readers := t.readers[myThread]
	n := len(readers)
	start := t.rr[myThread]
	for i := 0; i < n; i++ {
		shardIdx := (start + i) % n
		payload, ok, err := readers[shardIdx].TryRecv(ctx)
		if err != nil {
			return nil, false, err
		}
		if ok {
			t.rr[myThread] = (shardIdx + 1) % n
			return payload, true, nil
		}
	}
	return nil, false, nil
}

// Recv blocks, round-robin polling every writer shard's ring for myThread,
// until a message arrives or ctx is done.
func (t *Transport) Recv(ctx context.Context, myThread int) ([]byte, error) {
	for {
		payload, ok, err := t.TryRecv(ctx, myThread)
		if err != nil {
			return nil, err
		}
		if ok {
			return payload, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}
