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
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/latticegraph/gstore/clog"
)

// opcode identifies a TCPFabric request.
type opcode uint8

const (
	opRead  opcode = 1
	opWrite opcode = 2
)

// request is the fixed-size header every TCPFabric call sends:
// [opcode u8][shard u32][offset u64][length u32]. A write follows the
// header with length bytes of payload; a read's response follows a
// [status u8][length u32] reply header with length bytes of payload.
const reqHeaderSize = 1 + 4 + 8 + 4

// TCPFabric implements Fabric over plain TCP connections, for deployments
// without RDMA-capable hardware (spec section 9, "TCP fallback"). Every
// call blocks for a full request/response round trip — there is no
// separate completion queue to poll, since the network round trip already
// serves as the completion signal.
type TCPFabric struct {
	self int

	mu    sync.Mutex
	conns map[int]net.Conn

	dial func(peer int) (net.Conn, error)

	regMu   sync.RWMutex
	regions map[int][]byte // region served locally, keyed by this shard's own id
}

// NewTCPFabric constructs a fabric reachable as shard id self. dial opens a
// fresh connection to a peer shard id; callers typically close over a
// peer-address table built from cluster configuration.
func NewTCPFabric(self int, dial func(peer int) (net.Conn, error)) *TCPFabric {
	return &TCPFabric{
		self:    self,
		conns:   make(map[int]net.Conn),
		dial:    dial,
		regions: make(map[int][]byte),
	}
}

func (f *TCPFabric) Self() int { return f.self }

// Serve accepts connections on ln and answers Read/Write requests against
// the calling shard's own registered region until ln is closed.
func (f *TCPFabric) Serve(ln net.Listener, region []byte) error {
	f.regMu.Lock()
	f.regions[f.self] = region
	f.regMu.Unlock()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go f.handleConn(conn, region)
	}
}

func (f *TCPFabric) handleConn(conn net.Conn, region []byte) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	hdr := make([]byte, reqHeaderSize)
	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			if err != io.EOF {
				clog.Infof("rdma: tcp fabric connection closed: %v", err)
			}
			return
		}
		op := opcode(hdr[0])
		off := binary.BigEndian.Uint64(hdr[5:13])
		length := binary.BigEndian.Uint32(hdr[13:17])

		switch op {
		case opRead:
			resp := make([]byte, 5+length)
			if off+uint64(length) > uint64(len(region)) {
				resp[0] = 1
				binary.BigEndian.PutUint32(resp[1:5], 0)
				conn.Write(resp[:5])
				continue
			}
			resp[0] = 0
			binary.BigEndian.PutUint32(resp[1:5], length)
			copy(resp[5:], region[off:off+uint64(length)])
			if _, err := conn.Write(resp); err != nil {
				return
			}
		case opWrite:
			payload := make([]byte, length)
			if _, err := io.ReadFull(r, payload); err != nil {
				return
			}
			status := byte(0)
			if off+uint64(length) > uint64(len(region)) {
				status = 1
			} else {
				copy(region[off:off+uint64(length)], payload)
			}
			if _, err := conn.Write([]byte{status}); err != nil {
				return
			}
		default:
			clog.Infof("rdma: tcp fabric unknown opcode %d", op)
			return
		}
	}
}

func (f *TCPFabric) conn(peer int) (net.Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.conns[peer]; ok {
		return c, nil
	}
	c, err := f.dial(peer)
	if err != nil {
		return nil, &UnreachablePeerError{Peer: peer, Err: err}
	}
	f.conns[peer] = c
	return c, nil
}

func (f *TCPFabric) dropConn(peer int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.conns[peer]; ok {
		c.Close()
		delete(f.conns, peer)
	}
}

func (f *TCPFabric) Read(ctx context.Context, peer int, remoteOff uint64, buf []byte) error {
	c, err := f.conn(peer)
	if err != nil {
		return err
	}
	hdr := make([]byte, reqHeaderSize)
	hdr[0] = byte(opRead)
	binary.BigEndian.PutUint32(hdr[1:5], uint32(f.self))
	binary.BigEndian.PutUint64(hdr[5:13], remoteOff)
	binary.BigEndian.PutUint32(hdr[13:17], uint32(len(buf)))
	if _, err := c.Write(hdr); err != nil {
		f.dropConn(peer)
		return &UnreachablePeerError{Peer: peer, Err: err}
	}
	respHdr := make([]byte, 5)
	if _, err := io.ReadFull(c, respHdr); err != nil {
		f.dropConn(peer)
		return &UnreachablePeerError{Peer: peer, Err: err}
	}
	if respHdr[0] != 0 {
		return fmt.Errorf("rdma: tcp read [%d,%d) out of bounds on peer %d", remoteOff, remoteOff+uint64(len(buf)), peer)
	}
	length := binary.BigEndian.Uint32(respHdr[1:5])
	if length != uint32(len(buf)) {
		return fmt.Errorf("rdma: tcp read from peer %d returned %d bytes, wanted %d", peer, length, len(buf))
	}
	if _, err := io.ReadFull(c, buf); err != nil {
		f.dropConn(peer)
		return &UnreachablePeerError{Peer: peer, Err: err}
	}
	return nil
}

func (f *TCPFabric) Write(ctx context.Context, peer int, remoteOff uint64, buf []byte) error {
	c, err := f.conn(peer)
	if err != nil {
		return err
	}
	hdr := make([]byte, reqHeaderSize)
	hdr[0] = byte(opWrite)
	binary.BigEndian.PutUint32(hdr[1:5], uint32(f.self))
	binary.BigEndian.PutUint64(hdr[5:13], remoteOff)
	binary.BigEndian.PutUint32(hdr[13:17], uint32(len(buf)))
	if _, err := c.Write(hdr); err != nil {
		f.dropConn(peer)
		return &UnreachablePeerError{Peer: peer, Err: err}
	}
	if _, err := c.Write(buf); err != nil {
		f.dropConn(peer)
		return &UnreachablePeerError{Peer: peer, Err: err}
	}
	status := make([]byte, 1)
	if _, err := io.ReadFull(c, status); err != nil {
		f.dropConn(peer)
		return &UnreachablePeerError{Peer: peer, Err: err}
	}
	if status[0] != 0 {
		return fmt.Errorf("rdma: tcp write [%d,%d) out of bounds on peer %d", remoteOff, remoteOff+uint64(len(buf)), peer)
	}
	return nil
}
