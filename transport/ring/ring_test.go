package ring

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticegraph/gstore/internal/config"
	"github.com/latticegraph/gstore/shard"
	"github.com/latticegraph/gstore/transport/rdma"
)

// newLoopbackPair wires a Writer directly at the front of buf and a Reader
// over the same buf, with the reader's head-mirror publish looping straight
// back into the writer's own mirror buffer — the co-located case spec
// section 4.6 describes, with no fabric round trip needed for the mirror.
func newLoopbackPair(t *testing.T, ringSize uint64) (*Writer, *Reader, rdma.Fabric) {
	t.Helper()
	buf := make([]byte, ringSize)
	fabric := rdma.NewLocalFabric(0)
	fabric.Register(0, buf)

	mirrorBuf := make([]byte, 8)
	w := NewWriter(fabric, 0, 0, 0, ringSize, mirrorBuf)
	publish := func(ctx context.Context, newHead uint64) error {
		binary.LittleEndian.PutUint64(mirrorBuf, newHead)
		return nil
	}
	r := NewReader(buf, ringSize, publish)
	return w, r, fabric
}

func TestRingFIFOOrdering(t *testing.T) {
	w, r, _ := newLoopbackPair(t, 4096)
	ctx := context.Background()
	scratch := make([]byte, 256)

	ok, err := w.Send(ctx, scratch, []byte("hello"))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = w.Send(ctx, scratch, []byte("world"))
	require.NoError(t, err)
	require.True(t, ok)

	got1, ok, err := r.TryRecv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", string(got1))

	got2, ok, err := r.TryRecv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "world", string(got2))

	_, ok, err = r.TryRecv(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRingEmptyPayload(t *testing.T) {
	w, r, _ := newLoopbackPair(t, 4096)
	ctx := context.Background()
	scratch := make([]byte, 64)

	ok, err := w.Send(ctx, scratch, nil)
	require.NoError(t, err)
	require.True(t, ok)

	// Send accepts a zero-length payload, but its header word is 0, which
	// TryRecv reads as an empty ring, so the frame is not returned as a
	// message.
	_, _, _ = r.TryRecv(ctx)
}

func TestRingWraparound(t *testing.T) {
	// 32 bytes holds exactly one 8-byte payload frame (8+8+8=24) plus a
	// little slack; repeated sends/receives force the tail to cross the
	// ring boundary.
	w, r, _ := newLoopbackPair(t, 32)
	ctx := context.Background()
	scratch := make([]byte, 64)

	for i := 0; i < 20; i++ {
		payload := []byte{byte(i)}
		ok, err := w.Send(ctx, scratch, payload)
		require.NoError(t, err, "send %d", i)
		require.True(t, ok, "send %d overflowed", i)

		got, ok, err := r.TryRecv(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, payload, got)
	}
}

func TestRingOverflowReportedNotError(t *testing.T) {
	// A ring sized for exactly one frame; the second send without a
	// receive in between must overflow.
	w, _, _ := newLoopbackPair(t, 24)
	ctx := context.Background()
	scratch := make([]byte, 64)

	ok, err := w.Send(ctx, scratch, nil) // frame size 8+0+8=16 <= 24
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = w.Send(ctx, scratch, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRingSendScratchTooSmallErrors(t *testing.T) {
	w, _, _ := newLoopbackPair(t, 4096)
	ctx := context.Background()
	_, err := w.Send(ctx, make([]byte, 4), []byte("too big for scratch"))
	require.Error(t, err)
}

func testTransportLayout() shard.Layout {
	cfg := config.Default()
	cfg.KVStoreSize = 1 << 18
	cfg.NumEngines = 2
	cfg.NumServers = 1
	return shard.Compute(cfg)
}

func TestTransportSendRecvLoopback(t *testing.T) {
	l := testTransportLayout()
	region, err := shard.NewRegion(l)
	require.NoError(t, err)
	defer region.Close()

	fabric := rdma.NewLocalFabric(0)
	fabric.Register(0, region.Bytes())

	transport := New(fabric, region)
	ctx := context.Background()

	ok, err := transport.Send(ctx, 0, 0, 1, []byte("ping"))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := transport.Recv(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "ping", string(got))
}

func TestTransportTryRecvEmpty(t *testing.T) {
	l := testTransportLayout()
	region, err := shard.NewRegion(l)
	require.NoError(t, err)
	defer region.Close()

	fabric := rdma.NewLocalFabric(0)
	fabric.Register(0, region.Bytes())
	transport := New(fabric, region)

	_, ok, err := transport.TryRecv(context.Background(), 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func testMultiShardLayout(ringSize uint64) shard.Layout {
	cfg := config.Default()
	cfg.KVStoreSize = 1 << 18
	cfg.NumEngines = 1
	cfg.NumServers = 2
	l := shard.Compute(cfg)
	l.RingSize = ringSize
	return l
}

// TestTransportSendRecvCrossShard exercises a genuine cross-shard send: two
// Transports, backed by the same in-process fabric, each with self != the
// other's shard id. A frame sent from shard 0 to shard 1 must land in the
// ring shard 1 reserves for writer shard 0, which is a distinct ring from
// the one shard 1 reserves for its own loopback sends — so the two never
// share capacity. Each ring here holds exactly one frame (ringSize==24, and a
// payload of 1 to 8 bytes makes a 24-byte frame), so a collision between
// the two rings would show up as a spurious overflow.
func TestTransportSendRecvCrossShard(t *testing.T) {
	l := testMultiShardLayout(24)

	region0, err := shard.NewRegion(l)
	require.NoError(t, err)
	defer region0.Close()
	region1, err := shard.NewRegion(l)
	require.NoError(t, err)
	defer region1.Close()

	fabric0 := rdma.NewLocalFabric(0)
	fabric0.Register(0, region0.Bytes())
	fabric0.Register(1, region1.Bytes())
	fabric1 := rdma.NewLocalFabric(1)
	fabric1.Register(0, region0.Bytes())
	fabric1.Register(1, region1.Bytes())

	t0 := New(fabric0, region0)
	t1 := New(fabric1, region1)
	ctx := context.Background()

	// Fill shard 1's own loopback ring for thread 0 first. The payload is one
	// byte: a zero-length payload's header word is 0, which TryRecv reads as
	// an empty ring, so it could not be received back below.
	ok, err := t1.Send(ctx, 0, 1, 0, []byte("x"))
	require.NoError(t, err)
	require.True(t, ok)

	// A cross-shard send from shard 0 must land in its own, still-empty
	// ring rather than colliding with shard 1's full loopback ring. The
	// payload is kept to 8 bytes so its frame (8+8+8=24) exactly fills the
	// ring without overflowing on size alone.
	ok, err = t0.Send(ctx, 0, 1, 0, []byte("crossed!"))
	require.NoError(t, err)
	require.True(t, ok, "cross-shard send must not collide with the destination's own loopback ring")

	got, ok, err := t1.readers[0][0].TryRecv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "crossed!", string(got))

	_, ok, err = t1.readers[0][1].TryRecv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTransportSendOutOfRangeTarget(t *testing.T) {
	l := testTransportLayout()
	region, err := shard.NewRegion(l)
	require.NoError(t, err)
	defer region.Close()

	fabric := rdma.NewLocalFabric(0)
	fabric.Register(0, region.Bytes())
	transport := New(fabric, region)

	_, err = transport.Send(context.Background(), 0, 5, 0, []byte("x"))
	require.Error(t, err)
}
