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

// Package cache implements the remote vertex cache of spec section 4.3: a
// fixed-size, open-addressed, direct-mapped table of resolved peer-shard
// vertex slots, striped by entry.
package cache

import (
	"time"

	"github.com/latticegraph/gstore/kv"
	"github.com/latticegraph/gstore/kv/index"
	"github.com/latticegraph/gstore/metrics"
)

// DefaultSize is N from spec section 4.3.
const DefaultSize = 100000

type entry struct {
	lock   index.Spinlock
	key    kv.Key
	ptr    kv.ValuePointer
	expiry time.Time
}

// Cache is the remote vertex cache. It is gated by Enabled, spec's "global
// toggle": a disabled cache answers every Lookup with a miss and ignores
// Insert/Invalidate, so callers never need their own branch around it.
type Cache struct {
	entries []entry
	Dynamic bool // mirrors dynamic_gstore: gates the expiry check
	Enabled bool
}

func New(size int, dynamic, enabled bool) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{entries: make([]entry, size), Dynamic: dynamic, Enabled: enabled}
}

func (c *Cache) slot(k kv.Key) *entry {
	return &c.entries[k.Hash()%uint64(len(c.entries))]
}

// Lookup returns the cached slot for k, if present and (in dynamic mode)
// unexpired. Caching does not itself guarantee coherence: the edge
// size-tag check in the remote read protocol is what catches a block that
// was freed and recycled between the cache's last refresh and now.
func (c *Cache) Lookup(k kv.Key, now time.Time) (kv.Slot, bool) {
	if !c.Enabled {
		return kv.Slot{}, false
	}
	e := c.slot(k)
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.key.Equal(k) || e.key.IsEmpty() {
		metrics.CacheMisses.Inc()
		return kv.Slot{}, false
	}
	if c.Dynamic && !now.Before(e.expiry) {
		metrics.CacheMisses.Inc()
		return kv.Slot{}, false
	}
	metrics.CacheHits.Inc()
	return kv.Slot{Key: e.key, Ptr: e.ptr}, true
}

// Insert unconditionally overwrites the entry k hashes to.
func (c *Cache) Insert(s kv.Slot, lease time.Duration, now time.Time) {
	if !c.Enabled {
		return
	}
	e := c.slot(s.Key)
	e.lock.Lock()
	e.key = s.Key
	e.ptr = s.Ptr
	if c.Dynamic {
		e.expiry = now.Add(lease)
	}
	e.lock.Unlock()
}

// Invalidate clears the entry for k if it is currently occupied by k — used
// after a dynamic-mode coherence retry (spec section 4.5 step 6).
func (c *Cache) Invalidate(k kv.Key) {
	if !c.Enabled {
		return
	}
	e := c.slot(k)
	e.lock.Lock()
	if e.key.Equal(k) {
		e.key = kv.Key{}
		e.ptr = kv.ValuePointer{}
	}
	e.lock.Unlock()
}
