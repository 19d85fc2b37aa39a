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

// Package loader decodes the bulk-load input streams of spec section 6: the
// sorted spo/ops triple files and the attribute-value file produced by an
// external sort/dictionary-encoding collaborator, and feeds them to a
// mapper.Mapper. It is a consumer only — producing sorted, dictionary-encoded
// streams is out of scope here, same as spec section 1 scopes it out of the
// core.
package loader

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv/mapper"
)

// tripleRecordSize is one (s uint64, p uint64, o uint64) little-endian record.
const tripleRecordSize = 24

// attrRecordSize is one (s uint64, a uint64, v uint64, tag byte) little-endian
// record. v holds an int64, the bit pattern of a float32 zero-extended to 8
// bytes, or the bit pattern of a float64, selected by tag.
const attrRecordSize = 8 + 8 + 8 + 1

// AttrTag names which union member an attribute record's v field holds, per
// spec section 6: "(s, a, v:{int|float|double})".
type AttrTag byte

const (
	AttrInt    AttrTag = 1
	AttrFloat  AttrTag = 2
	AttrDouble AttrTag = 3
)

// ReadTriples decodes a sorted stream of fixed-width (s,p,o) records. The
// caller is responsible for having sorted the stream the way Phase A needs
// it: spo sorted by (s,p,o), ops sorted by (o,p,s) with TYPE_ID triples
// clustered at the front — this function only decodes, it does not sort.
func ReadTriples(r io.Reader) ([]mapper.Triple, error) {
	br := bufio.NewReader(r)
	var out []mapper.Triple
	buf := make([]byte, tripleRecordSize)
	for {
		if _, err := io.ReadFull(br, buf); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, fmt.Errorf("loader: read triple record: %w", err)
		}
		out = append(out, mapper.Triple{
			S: ids.ID(binary.LittleEndian.Uint64(buf[0:8])),
			P: ids.ID(binary.LittleEndian.Uint64(buf[8:16])),
			O: ids.ID(binary.LittleEndian.Uint64(buf[16:24])),
		})
	}
}

// ReadAttributes decodes a sorted stream of (s, a, v, tag) attribute records
// into mapper.Attribute values ready for Mapper.LoadAttributes.
func ReadAttributes(r io.Reader) ([]mapper.Attribute, error) {
	br := bufio.NewReader(r)
	var out []mapper.Attribute
	buf := make([]byte, attrRecordSize)
	for {
		if _, err := io.ReadFull(br, buf); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, fmt.Errorf("loader: read attribute record: %w", err)
		}
		s := ids.ID(binary.LittleEndian.Uint64(buf[0:8]))
		a := ids.ID(binary.LittleEndian.Uint64(buf[8:16]))
		v := binary.LittleEndian.Uint64(buf[16:24])
		tag := AttrTag(buf[24])

		val, err := decodeAttrValue(v, tag)
		if err != nil {
			return nil, fmt.Errorf("loader: attribute record (s=%d,a=%d): %w", s, a, err)
		}
		out = append(out, mapper.Attribute{S: s, A: a, Val: val})
	}
}

func decodeAttrValue(v uint64, tag AttrTag) (mapper.AttrValue, error) {
	switch tag {
	case AttrInt:
		return mapper.NewIntAttr(int32(v)), nil
	case AttrFloat:
		return mapper.NewFloatAttr(math.Float32frombits(uint32(v))), nil
	case AttrDouble:
		return mapper.NewDoubleAttr(math.Float64frombits(v)), nil
	default:
		return mapper.AttrValue{}, fmt.Errorf("loader: unrecognized attribute tag %d", tag)
	}
}

// Stats summarizes one bulk-load run across both streams, for cmd/gstored's
// load-time logging.
type Stats struct {
	mapper.BulkStats
	Attributes int
}

// LoadFiles drives Phase A and Phase B of spec section 4.4 end to end: decode
// spo and ops, hand them to m's Phase A bulk materialization, then run
// Phase B's index build so the predicate-index, type-index, and (if enabled)
// versatile aggregates are all in place before the caller hands the shard
// to any reader. attrs, if given, is decoded and materialized after Phase B,
// so attribute keys are not part of those derived indexes. attrs may be nil
// for a store with no typed attributes. numWorkers is the Phase B scan's worker count
// (see Mapper.BuildIndexes).
func LoadFiles(ctx context.Context, m *mapper.Mapper, spo, ops, attrs io.Reader, numWorkers int) (Stats, error) {
	spoTriples, err := ReadTriples(spo)
	if err != nil {
		return Stats{}, fmt.Errorf("loader: spo stream: %w", err)
	}
	opsTriples, err := ReadTriples(ops)
	if err != nil {
		return Stats{}, fmt.Errorf("loader: ops stream: %w", err)
	}
	bulkStats, err := m.LoadBulk(spoTriples, opsTriples)
	if err != nil {
		return Stats{}, fmt.Errorf("loader: bulk materialization: %w", err)
	}
	if err := m.BuildIndexes(ctx, numWorkers); err != nil {
		return Stats{}, fmt.Errorf("loader: build indexes: %w", err)
	}

	stats := Stats{BulkStats: bulkStats}
	if attrs == nil {
		return stats, nil
	}
	attrRecords, err := ReadAttributes(attrs)
	if err != nil {
		return Stats{}, fmt.Errorf("loader: attribute stream: %w", err)
	}
	if err := m.LoadAttributes(attrRecords); err != nil {
		return Stats{}, fmt.Errorf("loader: attribute materialization: %w", err)
	}
	stats.Attributes = len(attrRecords)
	return stats, nil
}
