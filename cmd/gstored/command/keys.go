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

// viper keys bound to config.Config fields and CLI flags, mirroring
// cayley's cmd/cayley/command KeyBackend/KeyAddress convention.
const (
	KeyConfig = "config"
	KeySelf   = "shard.self"

	KeyUseRDMA          = "store.use_rdma"
	KeyEnableCaching    = "store.enable_caching"
	KeyNumServers       = "store.num_servers"
	KeyNumEngines       = "store.num_engines"
	KeyKVStoreSize      = "store.kvstore_size"
	KeyAssociativity    = "store.associativity"
	KeyMainHeaderRatio  = "store.main_header_ratio"
	KeyDynamicGstore    = "store.dynamic_gstore"
	KeyVersatile        = "store.versatile"
	KeyCacheLeaseUS     = "store.cache_lease_us"

	KeyListenHost  = "store.listen_host"
	KeyListenPort  = "store.listen_port"
	KeyMetricsPort = "store.metrics_port"
	KeyLogLevel    = "store.log_level"

	KeySPOFile  = "load.spo"
	KeyOPSFile  = "load.ops"
	KeyAttrFile = "load.attrs"

	KeyPeerAddrs = "cluster.peer_addrs"
)
