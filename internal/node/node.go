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

// Package node wires one shard process together from a config.Config: the
// registered memory region, the hash index and edge-heap allocator, the
// triple-to-KV mapper, the remote vertex cache, the transport over the
// fabric the caller passes in, and the adaptor facade every engine thread
// uses.
// It plays the role cayley's internal/db plays for a graph.Handle, but for
// a single shard of this store rather than a single quadstore backend.
package node

import (
	"fmt"
	"time"

	"github.com/latticegraph/gstore/internal/config"
	"github.com/latticegraph/gstore/kv/alloc"
	"github.com/latticegraph/gstore/kv/cache"
	"github.com/latticegraph/gstore/kv/index"
	"github.com/latticegraph/gstore/kv/mapper"
	"github.com/latticegraph/gstore/kv/remote"
	"github.com/latticegraph/gstore/shard"
	"github.com/latticegraph/gstore/transport/adaptor"
	"github.com/latticegraph/gstore/transport/rdma"
	"github.com/latticegraph/gstore/transport/ring"
)

// Node owns every piece of one shard process's state, built from a single
// config.Config, and is the thing cmd/gstored's subcommands operate on.
type Node struct {
	Self   int
	Config *config.Config
	Layout shard.Layout
	Region *shard.Region

	Index  *index.Index
	Static *alloc.Static
	Dyn    *alloc.Dynamic
	Mapper *mapper.Mapper
	Cache  *cache.Cache

	Fabric    rdma.Fabric
	Transport *ring.Transport
	Adaptor   *adaptor.Facade
}

// Open constructs a Node for shard id self out of cfg, registering fabric as
// the one-sided remote-memory capability its region is reachable through.
// fabric must already know self == fabric.Self(); for a multi-shard cluster
// callers Register every peer's region (rdma.LocalFabric) or dial every peer
// (rdma.TCPFabric) before traffic starts.
func Open(cfg *config.Config, self int, fabric rdma.Fabric) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("node: invalid config: %w", err)
	}
	if fabric.Self() != self {
		return nil, fmt.Errorf("node: fabric is reachable as shard %d, want %d", fabric.Self(), self)
	}

	layout := shard.Compute(cfg)
	region, err := shard.NewRegion(layout)
	if err != nil {
		return nil, fmt.Errorf("node: allocate region: %w", err)
	}

	ix := index.New(region.IndexRegion(), cfg.Associativity, layout.NumMainBuckets, layout.NumIndirectBuckets, index.DefaultNumLocks)

	n := &Node{
		Self:   self,
		Config: cfg,
		Layout: layout,
		Region: region,
		Index:  ix,
		Fabric: fabric,
	}

	heap := region.EdgeHeap()
	if cfg.DynamicGstore {
		lease := time.Duration(cfg.CacheLeaseUS) * time.Microsecond
		n.Dyn = alloc.NewDynamic(heap, layout.NumEdges, cfg.NumEngines, lease)
		n.Mapper = mapper.New(ix, heap, nil, n.Dyn, cfg.Versatile)
	} else {
		n.Static = alloc.NewStatic(heap, layout.NumEdges)
		n.Mapper = mapper.New(ix, heap, n.Static, nil, cfg.Versatile)
	}

	n.Cache = cache.New(cache.DefaultSize, cfg.DynamicGstore, cfg.EnableCaching)

	lease := time.Duration(cfg.CacheLeaseUS) * time.Microsecond
	reader := remote.NewReader(fabric, layout, n.Cache, cfg.DynamicGstore, lease)
	transport := ring.New(fabric, region)
	n.Transport = transport
	n.Adaptor = adaptor.New(self, cfg.NumServers, ix, heap, reader, transport, region)

	return n, nil
}

// Close releases the node's registered region.
func (n *Node) Close() error {
	return n.Region.Close()
}
