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
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/latticegraph/gstore/internal/config"
)

// registerStoreFlags attaches every config.Config knob as a persistent flag
// on cmd and binds it into viper under the matching Key constant, the way
// cayley's command package binds KeyBackend/KeyAddress to cobra flags.
func registerStoreFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.Bool("use-rdma", false, "engage the one-sided fabric instead of the TCP ring fallback")
	f.Bool("enable-caching", true, "enable the remote vertex cache")
	f.Int("num-servers", 1, "shard count")
	f.Int("num-engines", 4, "worker threads per shard")
	f.Int64("kvstore-size", 1<<30, "total size, in bytes, of the registered memory region")
	f.Int("associativity", 8, "slots per bucket, including the chain-link slot")
	f.Int("main-header-ratio", 80, "percentage of the index region given to main buckets")
	f.Bool("dynamic", false, "enable online inserts, the dynamic allocator, and cache leases")
	f.Bool("versatile", false, "enable the predicate-set/type-set index families")
	f.Uint64("cache-lease-us", 120000000, "cache/edge-block lease window, in microseconds")
	f.String("listen-host", "127.0.0.1", "host to listen on for the TCP fallback fabric")
	f.String("listen-port", "6970", "port to listen on for the TCP fallback fabric")
	f.String("metrics-port", "9090", "port to serve Prometheus metrics on")
	f.Int("log-level", 0, "clog verbosity")
	f.Int("self", 0, "this process's shard id")

	viper.BindPFlag(KeyUseRDMA, f.Lookup("use-rdma"))
	viper.BindPFlag(KeyEnableCaching, f.Lookup("enable-caching"))
	viper.BindPFlag(KeyNumServers, f.Lookup("num-servers"))
	viper.BindPFlag(KeyNumEngines, f.Lookup("num-engines"))
	viper.BindPFlag(KeyKVStoreSize, f.Lookup("kvstore-size"))
	viper.BindPFlag(KeyAssociativity, f.Lookup("associativity"))
	viper.BindPFlag(KeyMainHeaderRatio, f.Lookup("main-header-ratio"))
	viper.BindPFlag(KeyDynamicGstore, f.Lookup("dynamic"))
	viper.BindPFlag(KeyVersatile, f.Lookup("versatile"))
	viper.BindPFlag(KeyCacheLeaseUS, f.Lookup("cache-lease-us"))
	viper.BindPFlag(KeyListenHost, f.Lookup("listen-host"))
	viper.BindPFlag(KeyListenPort, f.Lookup("listen-port"))
	viper.BindPFlag(KeyMetricsPort, f.Lookup("metrics-port"))
	viper.BindPFlag(KeyLogLevel, f.Lookup("log-level"))
	viper.BindPFlag(KeySelf, f.Lookup("self"))
}

// configFromViper builds a config.Config from whatever file --config named
// (if any) overlaid with the bound flags, mirroring cayley's configFrom: the
// file sets the baseline, and an explicit flag wins over it only where the
// flag was actually passed on the command line — a flag's mere default must
// never clobber a value the config file set.
func configFromViper(cmd *cobra.Command) (*config.Config, error) {
	file := viper.GetString(KeyConfig)
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	overlay := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	overlay("use-rdma", func() { cfg.UseRDMA = viper.GetBool(KeyUseRDMA) })
	overlay("enable-caching", func() { cfg.EnableCaching = viper.GetBool(KeyEnableCaching) })
	overlay("num-servers", func() { cfg.NumServers = viper.GetInt(KeyNumServers) })
	overlay("num-engines", func() { cfg.NumEngines = viper.GetInt(KeyNumEngines) })
	overlay("kvstore-size", func() { cfg.KVStoreSize = viper.GetInt64(KeyKVStoreSize) })
	overlay("associativity", func() { cfg.Associativity = viper.GetInt(KeyAssociativity) })
	overlay("main-header-ratio", func() { cfg.MainHeaderRatio = viper.GetInt(KeyMainHeaderRatio) })
	overlay("dynamic", func() { cfg.DynamicGstore = viper.GetBool(KeyDynamicGstore) })
	overlay("versatile", func() { cfg.Versatile = viper.GetBool(KeyVersatile) })
	overlay("cache-lease-us", func() { cfg.CacheLeaseUS = viper.GetUint64(KeyCacheLeaseUS) })
	overlay("listen-host", func() { cfg.ListenHost = viper.GetString(KeyListenHost) })
	overlay("listen-port", func() { cfg.ListenPort = viper.GetString(KeyListenPort) })
	overlay("log-level", func() { cfg.LogLevel = viper.GetInt(KeyLogLevel) })
	if cfg.RemoteReadTimeout == 0 {
		cfg.RemoteReadTimeout = 500 * time.Millisecond
	}
	return cfg, nil
}
