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
	"runtime"
)

// Reader is the receive side of one (my thread, writer shard) ring: the
// reader owns it exclusively (spec section 4.6, "a reader owns all of
// thread t's rings exclusively"), so head and publishedHead need no lock.
type Reader struct {
	buf      []byte
	ringSize uint64

	head          uint64
	publishedHead uint64

	publish func(ctx context.Context, newHead uint64) error
}

// NewReader constructs the reader side of a ring backed by buf (this
// shard's own Region.Ring(myThread, writerShard) slice). publish is called
// whenever the consumed cursor has advanced enough to be worth announcing
// to the writer (spec section 4.6's mirror-slot write); it is expected to
// close over the writer shard id, this shard's own id, and the thread id.
// Transport's publish writes the mirror slot over the fabric even when the
// writer is this same shard, since that slot is what the writer reads.
func NewReader(buf []byte, ringSize uint64, publish func(ctx context.Context, newHead uint64) error) *Reader {
	return &Reader{buf: buf, ringSize: ringSize, publish: publish}
}

func (r *Reader) wordAt(pos uint64) uint64 {
	pos %= r.ringSize
	return binary.LittleEndian.Uint64(r.buf[pos : pos+headerSize])
}

func (r *Reader) clearWordAt(pos uint64) {
	pos %= r.ringSize
	for i := uint64(0); i < headerSize; i++ {
		r.buf[pos+i] = 0
	}
}

// copyOut copies n bytes starting at ring-relative byte pos into dst,
// handling wraparound.
func (r *Reader) copyOut(dst []byte, pos uint64) {
	pos %= r.ringSize
	n := uint64(len(dst))
	tail := r.ringSize - pos
	if n <= tail {
		copy(dst, r.buf[pos:pos+n])
		return
	}
	copy(dst[:tail], r.buf[pos:r.ringSize])
	copy(dst[tail:], r.buf[0:n-tail])
}

// zeroRange zeros n bytes starting at ring-relative byte pos, handling
// wraparound (spec section 4.6, "zero the payload region" on read).
func (r *Reader) zeroRange(pos, n uint64) {
	pos %= r.ringSize
	for i := uint64(0); i < n; i++ {
		r.buf[(pos+i)%r.ringSize] = 0
	}
}

// TryRecv returns the next message on this ring, or ok=false if none is
// pending. It spin-waits only on the footer word of a frame whose header
// has already announced its size — spec section 4.6's "detail floor": the
// footer, not the tail cursor, is the completion witness for a one-sided
// write.
func (r *Reader) TryRecv(ctx context.Context) (payload []byte, ok bool, err error) {
	headPos := r.head % r.ringSize
	size := r.wordAt(headPos)
	if size == 0 {
		return nil, false, nil
	}
	r.clearWordAt(headPos)

	footerPos := headPos + headerSize + uint64(round8(int(size)))
	for {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		if r.wordAt(footerPos) == size {
			break
		}
		runtime.Gosched()
	}
	r.clearWordAt(footerPos)

	out := make([]byte, size)
	r.copyOut(out, headPos+headerSize)
	r.zeroRange(headPos+headerSize, uint64(round8(int(size))))

	msgSize := uint64(frameSize(int(size)))
	r.head += msgSize

	if r.head-r.publishedHead > r.ringSize/8 {
		if r.publish != nil {
			if err := r.publish(ctx, r.head); err != nil {
				return out, true, err
			}
		}
		r.publishedHead = r.head
	}
	return out, true, nil
}
