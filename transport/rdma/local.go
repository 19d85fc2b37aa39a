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

package rdma

import (
	"context"
	"fmt"
	"sync"
)

// LocalFabric is an in-process stand-in for the one-sided network fabric:
// every shard's registered region lives in the same address space, so a
// "remote" read or write is a direct byte copy against the target shard's
// buffer. It is used for single-process deployments (NumServers == 1) and
// for exercising the ring transport and remote read protocol in tests
// without a real RDMA-capable NIC or a TCP round trip.
type LocalFabric struct {
	self int

	mu     sync.RWMutex
	shards map[int][]byte
}

// NewLocalFabric constructs a fabric reachable as shard id self.
func NewLocalFabric(self int) *LocalFabric {
	return &LocalFabric{self: self, shards: make(map[int][]byte)}
}

// Register exposes buf as the addressable region for shard id.
func (f *LocalFabric) Register(id int, buf []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shards[id] = buf
}

func (f *LocalFabric) Self() int { return f.self }

func (f *LocalFabric) region(peer int) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	buf, ok := f.shards[peer]
	if !ok {
		return nil, &UnreachablePeerError{Peer: peer, Err: ErrUnavailable}
	}
	return buf, nil
}

func (f *LocalFabric) Read(ctx context.Context, peer int, remoteOff uint64, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	region, err := f.region(peer)
	if err != nil {
		return err
	}
	if remoteOff+uint64(len(buf)) > uint64(len(region)) {
		return fmt.Errorf("rdma: read [%d,%d) out of bounds for peer %d region of %d bytes",
			remoteOff, remoteOff+uint64(len(buf)), peer, len(region))
	}
	copy(buf, region[remoteOff:remoteOff+uint64(len(buf))])
	return nil
}

func (f *LocalFabric) Write(ctx context.Context, peer int, remoteOff uint64, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	region, err := f.region(peer)
	if err != nil {
		return err
	}
	if remoteOff+uint64(len(buf)) > uint64(len(region)) {
		return fmt.Errorf("rdma: write [%d,%d) out of bounds for peer %d region of %d bytes",
			remoteOff, remoteOff+uint64(len(buf)), peer, len(region))
	}
	copy(region[remoteOff:remoteOff+uint64(len(buf))], buf)
	return nil
}
