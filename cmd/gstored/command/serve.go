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
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/latticegraph/gstore/clog"
	"github.com/latticegraph/gstore/internal/config"
	"github.com/latticegraph/gstore/internal/node"
	"github.com/latticegraph/gstore/transport/rdma"
)

// NewServeCmd builds the command that runs one shard process to completion:
// registers its region on the chosen fabric, serves Prometheus metrics, and
// blocks until interrupted.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one gstore shard process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromViper(cmd)
			if err != nil {
				return err
			}
			self := viper.GetInt(KeySelf)

			fabric, closeFabric, err := buildFabric(cfg, self)
			if err != nil {
				return fmt.Errorf("gstored: build fabric: %w", err)
			}
			defer closeFabric()

			n, err := node.Open(cfg, self, fabric)
			if err != nil {
				return fmt.Errorf("gstored: open node: %w", err)
			}
			defer n.Close()

			if err := startFabricServing(fabric, n); err != nil {
				return fmt.Errorf("gstored: start fabric: %w", err)
			}

			metricsAddr := net.JoinHostPort(cfg.ListenHost, viper.GetString(KeyMetricsPort))
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			go func() {
				clog.Infof("gstored: metrics listening on %s", metricsAddr)
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					clog.Errorf("gstored: metrics server: %v", err)
				}
			}()

			clog.Infof("gstored: shard %d serving (num_servers=%d, num_engines=%d, dynamic=%v)",
				self, cfg.NumServers, cfg.NumEngines, cfg.DynamicGstore)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			<-sig
			clog.Infof("gstored: shard %d shutting down", self)
			return nil
		},
	}
	return cmd
}

// buildFabric constructs the fabric this shard is reachable through. No real
// RDMA NIC binding lives in this repository, and the choice is made from
// NumServers alone: the in-process LocalFabric for a single-shard deployment,
// or the TCPFabric for a multi-shard one. cfg.UseRDMA is not consulted. Both
// satisfy the one-sided rdma.Fabric contract the ring transport and remote
// read protocol are written against.
func buildFabric(cfg *config.Config, self int) (rdma.Fabric, func(), error) {
	if cfg.NumServers <= 1 {
		return rdma.NewLocalFabric(self), func() {}, nil
	}
	peers := viper.GetStringSlice(KeyPeerAddrs)
	if len(peers) != cfg.NumServers {
		return nil, nil, fmt.Errorf("cluster.peer_addrs must list %d addresses, got %d", cfg.NumServers, len(peers))
	}
	fabric := rdma.NewTCPFabric(self, func(peer int) (net.Conn, error) {
		return net.Dial("tcp", peers[peer])
	})
	return fabric, func() {}, nil
}

// startFabricServing makes n's region reachable on fabric: for a
// LocalFabric that is an in-process map registration; for a TCPFabric it is
// a listener accepting peer connections.
func startFabricServing(fabric rdma.Fabric, n *node.Node) error {
	switch f := fabric.(type) {
	case *rdma.LocalFabric:
		f.Register(n.Self, n.Region.Bytes())
		return nil
	case *rdma.TCPFabric:
		addr := net.JoinHostPort(n.Config.ListenHost, n.Config.ListenPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		go func() {
			if err := f.Serve(ln, n.Region.Bytes()); err != nil {
				clog.Errorf("gstored: tcp fabric serve: %v", err)
			}
		}()
		return nil
	default:
		return fmt.Errorf("gstored: unrecognized fabric type %T", fabric)
	}
}
