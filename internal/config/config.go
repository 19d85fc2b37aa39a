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

// Package config defines the behavior of a gstore shard process.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config defines the behavior of a gstore shard instance.
type Config struct {
	// UseRDMA is loaded from use_rdma and the --use-rdma flag, but nothing
	// reads it: cmd/gstored picks the fabric from NumServers alone.
	UseRDMA bool
	// EnableCaching enables the remote vertex cache.
	EnableCaching bool
	// NumServers is the shard count; subject/object partitioning is hash_mod(vid, NumServers).
	NumServers int
	// NumEngines is the number of worker threads per shard; governs ring count.
	NumEngines int
	// KVStoreSize is the total size, in bytes, of the registered memory region.
	KVStoreSize int64
	// Associativity is the number of slots per bucket, including the chain-link slot.
	Associativity int
	// MainHeaderRatio is the percentage of the index region given to main (non-indirect) buckets.
	MainHeaderRatio int
	// DynamicGstore enables online inserts, the dynamic buddy allocator, and cache leases.
	DynamicGstore bool
	// Versatile enables the bonus index families (predicates-of-vertex, all-local-X sets).
	Versatile bool
	// CacheLeaseUS is the cache/edge-block lease window, in microseconds.
	CacheLeaseUS uint64

	ListenHost string
	ListenPort string
	LogLevel   int
	// RemoteReadTimeout is loaded from remote_read_timeout (default 500ms).
	// The remote read path does not read it, so remote reads are not
	// bounded by it.
	RemoteReadTimeout time.Duration
}

// Default returns the configuration defaults spelled out in spec.md section 6.
func Default() *Config {
	return &Config{
		UseRDMA:         false,
		EnableCaching:   true,
		NumServers:      1,
		NumEngines:      4,
		KVStoreSize:     1 << 30,
		Associativity:   8,
		MainHeaderRatio: 80,
		DynamicGstore:   false,
		Versatile:       false,
		CacheLeaseUS:    120000000,
		ListenHost:      "127.0.0.1",
		ListenPort:      "6970",
		RemoteReadTimeout: 500 * time.Millisecond,
	}
}

type config struct {
	UseRDMA         bool     `json:"use_rdma"`
	EnableCaching   bool     `json:"enable_caching"`
	NumServers      int      `json:"num_servers"`
	NumEngines      int      `json:"num_engines"`
	KVStoreSize     int64    `json:"kvstore_size"`
	Associativity   int      `json:"associativity"`
	MainHeaderRatio int      `json:"main_header_ratio"`
	DynamicGstore   bool     `json:"dynamic_gstore"`
	Versatile       bool     `json:"versatile"`
	CacheLeaseUS    uint64   `json:"cache_lease_us"`
	ListenHost        string   `json:"listen_host"`
	ListenPort        string   `json:"listen_port"`
	LogLevel          int      `json:"log_level"`
	RemoteReadTimeout duration `json:"remote_read_timeout"`
}

func (c *Config) UnmarshalJSON(data []byte) error {
	t := config{
		UseRDMA:         false,
		EnableCaching:   true,
		NumServers:      1,
		NumEngines:      4,
		KVStoreSize:     1 << 30,
		Associativity:   8,
		MainHeaderRatio: 80,
		CacheLeaseUS:    120000000,
		ListenHost:        "127.0.0.1",
		ListenPort:        "6970",
		RemoteReadTimeout: duration(500 * time.Millisecond),
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	*c = Config{
		UseRDMA:           t.UseRDMA,
		EnableCaching:     t.EnableCaching,
		NumServers:        t.NumServers,
		NumEngines:        t.NumEngines,
		KVStoreSize:       t.KVStoreSize,
		Associativity:     t.Associativity,
		MainHeaderRatio:   t.MainHeaderRatio,
		DynamicGstore:     t.DynamicGstore,
		Versatile:         t.Versatile,
		CacheLeaseUS:      t.CacheLeaseUS,
		ListenHost:        t.ListenHost,
		ListenPort:        t.ListenPort,
		LogLevel:          t.LogLevel,
		RemoteReadTimeout: time.Duration(t.RemoteReadTimeout),
	}
	return nil
}

func (c *Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(config{
		UseRDMA:           c.UseRDMA,
		EnableCaching:     c.EnableCaching,
		NumServers:        c.NumServers,
		NumEngines:        c.NumEngines,
		KVStoreSize:       c.KVStoreSize,
		Associativity:     c.Associativity,
		MainHeaderRatio:   c.MainHeaderRatio,
		DynamicGstore:     c.DynamicGstore,
		Versatile:         c.Versatile,
		CacheLeaseUS:      c.CacheLeaseUS,
		ListenHost:        c.ListenHost,
		ListenPort:        c.ListenPort,
		LogLevel:          c.LogLevel,
		RemoteReadTimeout: duration(c.RemoteReadTimeout),
	})
}

// duration is a time.Duration that satisfies the json.Unmarshaler and
// json.Marshaler interfaces, accepting either a Go duration string or a bare
// number of seconds.
type duration time.Duration

func (d *duration) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*d = 0
		return nil
	}
	text := string(data)
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	t, err := time.ParseDuration(text)
	if err == nil {
		*d = duration(t)
		return nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err == nil {
		*d = duration(time.Duration(i) * time.Second)
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	*d = duration(time.Duration(f) * time.Second)
	return err
}

func (d duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d).String())), nil
}

// Load reads a JSON-encoded config contained in the given file. Defaults are
// returned if the filename is empty.
func Load(file string) (*Config, error) {
	cfg := Default()
	if file == "" {
		return cfg, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("could not open config file %q: %v", file, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %q: %v", file, err)
	}
	return cfg, nil
}

// Validate enforces the structural constraints spec.md assumes at construction
// time: no configuration reaches the store with a field that would make key or
// value-pointer construction truncate silently.
func (c *Config) Validate() error {
	if c.NumServers <= 0 {
		return fmt.Errorf("num_servers must be positive, got %d", c.NumServers)
	}
	if c.NumEngines <= 0 {
		return fmt.Errorf("num_engines must be positive, got %d", c.NumEngines)
	}
	if c.Associativity < 2 {
		return fmt.Errorf("associativity must be at least 2 (one chain slot), got %d", c.Associativity)
	}
	if c.MainHeaderRatio <= 0 || c.MainHeaderRatio > 100 {
		return fmt.Errorf("main_header_ratio must be in (0,100], got %d", c.MainHeaderRatio)
	}
	if c.KVStoreSize <= 0 {
		return fmt.Errorf("kvstore_size must be positive, got %d", c.KVStoreSize)
	}
	return nil
}
