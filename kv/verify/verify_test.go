package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv"
	"github.com/latticegraph/gstore/kv/alloc"
	"github.com/latticegraph/gstore/kv/index"
	"github.com/latticegraph/gstore/kv/mapper"
)

type fixture struct {
	ix   *index.Index
	heap []byte
	st   *alloc.Static
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	assoc := 4
	numMain, numIndirect := uint64(31), uint64(64)
	region := make([]byte, (numMain+numIndirect)*uint64(assoc)*kv.SlotSize)
	ix := index.New(region, assoc, numMain, numIndirect, 16)
	heap := make([]byte, 1<<14)
	st := alloc.NewStatic(heap, 1<<12)
	return &fixture{ix: ix, heap: heap, st: st}
}

func (f *fixture) insert(t *testing.T, vid, pid ids.ID, dir ids.Direction, words []uint32) kv.Key {
	t.Helper()
	off, err := f.st.AllocEdges(uint64(len(words)))
	require.NoError(t, err)
	kv.WriteEdges(f.heap, off, words)
	k := kv.NewKey(vid, pid, dir)
	ptr := kv.NewValuePointer(uint64(len(words)), off, kv.SidList)
	_, _, err = f.ix.InsertKey(k, ptr, true)
	require.NoError(t, err)
	return k
}

func TestRunPassesOnConsistentMapperLoadedGraph(t *testing.T) {
	assoc := 4
	numMain, numIndirect := uint64(31), uint64(64)
	region := make([]byte, (numMain+numIndirect)*uint64(assoc)*kv.SlotSize)
	ix := index.New(region, assoc, numMain, numIndirect, 16)
	heap := make([]byte, 1<<16)
	st := alloc.NewStatic(heap, 1<<14)
	m := mapper.New(ix, heap, st, nil, false)

	spo := []mapper.Triple{
		{S: 1, P: ids.TypeID, O: 50},
		{S: 1, P: 5, O: 2},
		{S: 3, P: 5, O: 2},
	}
	ops := []mapper.Triple{
		{S: 1, P: ids.TypeID, O: 50},
		{S: 1, P: 5, O: 2},
		{S: 3, P: 5, O: 2},
	}
	_, err := m.LoadBulk(spo, ops)
	require.NoError(t, err)
	require.NoError(t, m.BuildIndexes(context.Background(), 2))

	report := Run(ix, heap, false)
	require.True(t, report.Pass(), "unexpected violations: %v", report.Violations)
}

func TestRunPassesOnConsistentVersatileGraph(t *testing.T) {
	assoc := 4
	numMain, numIndirect := uint64(31), uint64(64)
	region := make([]byte, (numMain+numIndirect)*uint64(assoc)*kv.SlotSize)
	ix := index.New(region, assoc, numMain, numIndirect, 16)
	heap := make([]byte, 1<<16)
	st := alloc.NewStatic(heap, 1<<14)
	m := mapper.New(ix, heap, st, nil, true)

	spo := []mapper.Triple{
		{S: 1, P: ids.TypeID, O: 50},
		{S: 1, P: 5, O: 2},
	}
	ops := []mapper.Triple{
		{S: 1, P: ids.TypeID, O: 50},
		{S: 1, P: 5, O: 2},
	}
	_, err := m.LoadBulk(spo, ops)
	require.NoError(t, err)
	require.NoError(t, m.BuildIndexes(context.Background(), 1))

	report := Run(ix, heap, true)
	require.True(t, report.Pass(), "unexpected violations: %v", report.Violations)
}

func TestRunReportsDuplicateKey(t *testing.T) {
	f := newFixture(t)
	k := kv.NewKey(1, 5, ids.Out)
	ptr := kv.NewValuePointer(1, 0, kv.SidList)
	kv.WriteEdges(f.heap, 0, []uint32{2})

	// Publish the same key into two unrelated slots directly, bypassing
	// InsertKey's chain walk — this is the on-disk corruption the verifier
	// exists to catch, not something the index's own API can produce.
	kv.PublishSlot(f.ix.Region, 0, k, ptr)
	kv.PublishSlot(f.ix.Region, uint64(f.ix.Associativity), k, ptr)

	report := Run(f.ix, f.heap, false)
	require.False(t, report.Pass())
	found := false
	for _, v := range report.Violations {
		if v.Kind == "DuplicateKey" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunReportsMissingBuddyEdge(t *testing.T) {
	f := newFixture(t)
	f.insert(t, 1, 5, ids.Out, []uint32{2}) // no matching (2,5,IN)->1

	report := Run(f.ix, f.heap, false)
	require.False(t, report.Pass())
	require.Equal(t, "MissingBuddyEdge", report.Violations[0].Kind)
}

func TestRunReportsNoViolationForTypeTripleWithoutBuddy(t *testing.T) {
	f := newFixture(t)
	// A type triple never has a matching (TYPE_ID, IN) edge — only the
	// type-index aggregate, which is present here and keeps the rest of
	// Run satisfied so the assertion below isolates the buddy-symmetry
	// exemption specifically.
	f.insert(t, 1, ids.TypeID, ids.Out, []uint32{50})
	f.insert(t, 0, 50, ids.In, []uint32{1})

	report := Run(f.ix, f.heap, false)
	require.True(t, report.Pass(), "unexpected violations: %v", report.Violations)
}

func TestRunReportsDuplicateValue(t *testing.T) {
	f := newFixture(t)
	off, err := f.st.AllocEdges(2)
	require.NoError(t, err)
	kv.WriteEdges(f.heap, off, []uint32{2, 2})
	k := kv.NewKey(1, 5, ids.Out)
	ptr := kv.NewValuePointer(2, off, kv.SidList)
	_, _, err = f.ix.InsertKey(k, ptr, true)
	require.NoError(t, err)

	report := Run(f.ix, f.heap, false)
	require.False(t, report.Pass())
	require.Equal(t, "DuplicateValue", report.Violations[0].Kind)
}

func TestRunReportsMissingEdgeForPredicateIndex(t *testing.T) {
	f := newFixture(t)
	// A predicate-index entry claims vertex 7 has a (7,5,OUT) edge, but no
	// such slot exists.
	f.insert(t, 0, 5, ids.Out, []uint32{7})

	report := Run(f.ix, f.heap, false)
	require.False(t, report.Pass())
	require.Equal(t, "MissingEdgeForIndex", report.Violations[0].Kind)
}

func TestRunReportsMissingTypeIndex(t *testing.T) {
	f := newFixture(t)
	// vertex 1 claims type 50 but the (0,50,IN) type-index aggregate is
	// absent.
	f.insert(t, 1, ids.TypeID, ids.Out, []uint32{50})

	report := Run(f.ix, f.heap, false)
	require.False(t, report.Pass())
	require.Equal(t, "MissingTypeIndex", report.Violations[0].Kind)
}

func TestRunReportsMissingVersatileAllVertices(t *testing.T) {
	f := newFixture(t)
	f.insert(t, 1, ids.TypeID, ids.Out, []uint32{50})
	f.insert(t, 0, 50, ids.In, []uint32{1}) // satisfy the type-index check

	report := Run(f.ix, f.heap, true)
	require.False(t, report.Pass())
	var kinds []string
	for _, v := range report.Violations {
		kinds = append(kinds, v.Kind)
	}
	require.Contains(t, kinds, "MissingVersatileAllVertices")
}

func TestPassEmptyReportIsTrue(t *testing.T) {
	var r Report
	require.True(t, r.Pass())
	require.Empty(t, r.Violations)
}

func TestViolationString(t *testing.T) {
	v := Violation{Kind: "DuplicateKey", Key: kv.NewKey(1, 2, ids.Out), Detail: "dup"}
	require.Contains(t, v.String(), "DuplicateKey")
	require.Contains(t, v.String(), "dup")
}
