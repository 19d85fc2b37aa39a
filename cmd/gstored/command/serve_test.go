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

package command

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/latticegraph/gstore/internal/config"
	"github.com/latticegraph/gstore/internal/node"
	"github.com/latticegraph/gstore/transport/rdma"
)

func TestBuildFabricSingleShardUsesLocalFabric(t *testing.T) {
	viper.Reset()
	cfg := config.Default()
	cfg.NumServers = 1

	fabric, closeFabric, err := buildFabric(cfg, 0)
	require.NoError(t, err)
	defer closeFabric()

	_, ok := fabric.(*rdma.LocalFabric)
	require.True(t, ok)
	require.Equal(t, 0, fabric.Self())
}

func TestBuildFabricMultiShardRequiresMatchingPeerAddrs(t *testing.T) {
	viper.Reset()
	cfg := config.Default()
	cfg.NumServers = 3
	viper.Set(KeyPeerAddrs, []string{"127.0.0.1:1", "127.0.0.1:2"})

	_, _, err := buildFabric(cfg, 0)
	require.Error(t, err)
}

func TestBuildFabricMultiShardUsesTCPFabric(t *testing.T) {
	viper.Reset()
	cfg := config.Default()
	cfg.NumServers = 2
	viper.Set(KeyPeerAddrs, []string{"127.0.0.1:1", "127.0.0.1:2"})

	fabric, closeFabric, err := buildFabric(cfg, 1)
	require.NoError(t, err)
	defer closeFabric()

	tcp, ok := fabric.(*rdma.TCPFabric)
	require.True(t, ok)
	require.Equal(t, 1, tcp.Self())
}

func testServeConfig() *config.Config {
	cfg := config.Default()
	cfg.NumServers = 1
	cfg.KVStoreSize = 1 << 18
	cfg.Associativity = 4
	cfg.MainHeaderRatio = 80
	cfg.NumEngines = 1
	return cfg
}

func TestStartFabricServingRegistersLocalFabric(t *testing.T) {
	cfg := testServeConfig()
	fabric := rdma.NewLocalFabric(0)

	n, err := node.Open(cfg, 0, fabric)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, startFabricServing(fabric, n))

	// A self-read via the now-registered region proves Register was called.
	buf := make([]byte, 8)
	require.NoError(t, fabric.Read(context.Background(), 0, 0, buf))
}

func TestStartFabricServingRejectsUnknownFabricType(t *testing.T) {
	err := startFabricServing(unknownFabric{}, nil)
	require.Error(t, err)
}

type unknownFabric struct{}

func (unknownFabric) Read(ctx context.Context, peer int, off uint64, dst []byte) error  { return nil }
func (unknownFabric) Write(ctx context.Context, peer int, off uint64, src []byte) error { return nil }
func (unknownFabric) Self() int                                                         { return 0 }
