package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/internal/config"
	"github.com/latticegraph/gstore/transport/rdma"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.KVStoreSize = 1 << 18
	cfg.Associativity = 8
	cfg.MainHeaderRatio = 80
	cfg.NumEngines = 2
	cfg.NumServers = 1
	return cfg
}

func TestOpenStaticModeWiresEverything(t *testing.T) {
	cfg := testConfig()
	cfg.DynamicGstore = false
	fabric := rdma.NewLocalFabric(0)

	n, err := Open(cfg, 0, fabric)
	require.NoError(t, err)
	defer n.Close()

	require.NotNil(t, n.Index)
	require.NotNil(t, n.Static)
	require.Nil(t, n.Dyn)
	require.NotNil(t, n.Mapper)
	require.NotNil(t, n.Cache)
	require.NotNil(t, n.Transport)
	require.NotNil(t, n.Adaptor)
	require.Equal(t, 0, n.Self)
}

func TestOpenDynamicModeWiresEverything(t *testing.T) {
	cfg := testConfig()
	cfg.DynamicGstore = true
	fabric := rdma.NewLocalFabric(0)

	n, err := Open(cfg, 0, fabric)
	require.NoError(t, err)
	defer n.Close()

	require.NotNil(t, n.Dyn)
	require.Nil(t, n.Static)
	require.NotNil(t, n.Mapper)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.NumServers = 0
	_, err := Open(cfg, 0, rdma.NewLocalFabric(0))
	require.Error(t, err)
}

func TestOpenRejectsFabricSelfMismatch(t *testing.T) {
	cfg := testConfig()
	_, err := Open(cfg, 0, rdma.NewLocalFabric(1))
	require.Error(t, err)
}

func TestOpenedNodeServesLocalTripleAfterInsert(t *testing.T) {
	cfg := testConfig()
	cfg.DynamicGstore = true
	fabric := rdma.NewLocalFabric(0)

	n, err := Open(cfg, 0, fabric)
	require.NoError(t, err)
	defer n.Close()

	now := time.Unix(1700000000, 0)
	require.NoError(t, n.Mapper.InsertTriple(1, 5, 2, 0, now, true))

	words, tag, found, err := n.Adaptor.Lookup(context.Background(), 0, 1, 5, ids.Out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []uint32{2}, words)
	_ = tag
}

func TestOpenedNodeRingLoopbackAfterRegister(t *testing.T) {
	cfg := testConfig()
	fabric := rdma.NewLocalFabric(0)

	n, err := Open(cfg, 0, fabric)
	require.NoError(t, err)
	defer n.Close()

	fabric.Register(0, n.Region.Bytes())

	ctx := context.Background()
	ok, err := n.Adaptor.Send(ctx, 0, 0, 1, 9, []byte("hi"))
	require.NoError(t, err)
	require.True(t, ok)

	b, err := n.Adaptor.Recv(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, byte(9), b.Type)
	require.Equal(t, "hi", string(b.Payload))
}

func TestCloseIsSafe(t *testing.T) {
	cfg := testConfig()
	n, err := Open(cfg, 0, rdma.NewLocalFabric(0))
	require.NoError(t, err)
	require.NoError(t, n.Close())
}
