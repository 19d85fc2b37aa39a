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
	"strconv"

	"github.com/latticegraph/gstore/kv/index"
	"github.com/latticegraph/gstore/metrics"
	"github.com/latticegraph/gstore/transport/rdma"
)

// Writer is the send side of one (reader thread, writer shard) ring:
// every local thread on this shard that sends to that specific reader
// thread shares this Writer and its lock, matching spec section 4.6's
// "the writer side of the pair is serialized by a per-ring spinlock."
type Writer struct {
	fabric rdma.Fabric

	readerShard  int
	readerThread int
	ringOff      uint64
	ringSize     uint64

	// mirrorBuf is this shard's own local copy of the reader's last
	// published head (spec section 4.6's mirror slot "on the writer's
	// shard") — read directly, no network round trip, on every Send.
	mirrorBuf []byte

	lock index.Spinlock
	tail uint64
}

// NewWriter constructs the writer side of the ring serving readerThread on
// readerShard, sized ringSize and located at ringOff within readerShard's
// region. mirrorBuf is this shard's own Region.Mirror(readerThread,
// readerShard) slice.
func NewWriter(fabric rdma.Fabric, readerShard, readerThread int, ringOff, ringSize uint64, mirrorBuf []byte) *Writer {
	return &Writer{
		fabric:       fabric,
		readerShard:  readerShard,
		readerThread: readerThread,
		ringOff:      ringOff,
		ringSize:     ringSize,
		mirrorBuf:    mirrorBuf,
	}
}

func (w *Writer) publishedHead() uint64 {
	return binary.LittleEndian.Uint64(w.mirrorBuf)
}

// Send frames payload and writes it into the reader's ring, using scratch
// as staging space (must be at least frameSize(len(payload)) bytes). It
// reports false, nil on overflow (spec section 7, RingOverflow — the
// caller retries, this is never an error).
func (w *Writer) Send(ctx context.Context, scratch []byte, payload []byte) (bool, error) {
	msgSize := frameSize(len(payload))

	w.lock.Lock()
	published := w.publishedHead()
	if w.ringSize < (w.tail-published)+uint64(msgSize) {
		w.lock.Unlock()
		metrics.RingOverflow.WithLabelValues(strconv.Itoa(w.readerShard)).Inc()
		return false, nil
	}
	writeAt := w.tail
	w.tail += uint64(msgSize)
	w.lock.Unlock()

	if len(scratch) < msgSize {
		return false, fmt.Errorf("ring: scratch buffer of %d bytes too small for frame of %d bytes", len(scratch), msgSize)
	}
	frame := scratch[:msgSize]
	binary.LittleEndian.PutUint64(frame[0:headerSize], uint64(len(payload)))
	copy(frame[headerSize:headerSize+len(payload)], payload)
	for i := headerSize + len(payload); i < headerSize+round8(len(payload)); i++ {
		frame[i] = 0
	}
	footerOff := headerSize + round8(len(payload))
	binary.LittleEndian.PutUint64(frame[footerOff:footerOff+headerSize], uint64(len(payload)))

	if err := w.writeRing(ctx, writeAt, frame); err != nil {
		return false, err
	}
	return true, nil
}

// writeRing places frame into the ring at byte offset pos (mod ringSize),
// splitting into two fabric writes if it straddles the ring's wraparound
// boundary.
func (w *Writer) writeRing(ctx context.Context, pos uint64, frame []byte) error {
	start := pos % w.ringSize
	tail := w.ringSize - start
	if uint64(len(frame)) <= tail {
		return w.fabric.Write(ctx, w.readerShard, w.ringOff+start, frame)
	}
	if err := w.fabric.Write(ctx, w.readerShard, w.ringOff+start, frame[:tail]); err != nil {
		return err
	}
	return w.fabric.Write(ctx, w.readerShard, w.ringOff, frame[tail:])
}
