package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latticegraph/gstore/ids"
	"github.com/latticegraph/gstore/kv"
)

func newTestIndex(t *testing.T, assoc int, numMain, numIndirect uint64) *Index {
	t.Helper()
	total := (numMain + numIndirect) * uint64(assoc) * kv.SlotSize
	region := make([]byte, total)
	return New(region, assoc, numMain, numIndirect, 16)
}

func key(vid, pid uint64, dir ids.Direction) kv.Key {
	return kv.NewKey(ids.ID(vid), ids.ID(pid), dir)
}

func TestInsertAndLookup(t *testing.T) {
	ix := newTestIndex(t, 4, 7, 4)

	k := key(1, 1, ids.Out)
	p := kv.NewValuePointer(2, 0, kv.SidList)
	slot, existed, err := ix.InsertKey(k, p, true)
	require.NoError(t, err)
	require.False(t, existed)
	require.Equal(t, p, slot.Ptr)

	got, ok := ix.LookupLocal(k)
	require.True(t, ok)
	require.Equal(t, p, got.Ptr)

	_, ok = ix.LookupLocal(key(2, 1, ids.Out))
	require.False(t, ok)
}

func TestInsertDuplicateKeyErrors(t *testing.T) {
	ix := newTestIndex(t, 4, 7, 4)
	k := key(5, 1, ids.Out)
	p := kv.NewValuePointer(1, 0, kv.Int)
	_, _, err := ix.InsertKey(k, p, true)
	require.NoError(t, err)

	_, existed, err := ix.InsertKey(k, p, true)
	require.Error(t, err)
	require.True(t, existed)
}

func TestInsertDuplicateKeyNoCheckReturnsExisting(t *testing.T) {
	ix := newTestIndex(t, 4, 7, 4)
	k := key(5, 1, ids.Out)
	p := kv.NewValuePointer(1, 0, kv.Int)
	_, _, err := ix.InsertKey(k, p, true)
	require.NoError(t, err)

	slot, existed, err := ix.InsertKey(k, kv.NewValuePointer(9, 9, kv.Int), false)
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, p, slot.Ptr) // unchanged
}

func TestInsertOverflowsIntoIndirectBucket(t *testing.T) {
	// Associativity 2 means 1 data slot per bucket, forcing every collision
	// into an indirect-bucket chain.
	ix := newTestIndex(t, 2, 3, 40)

	var keys []kv.Key
	for i := 0; i < 20; i++ {
		k := key(uint64(i), 1, ids.Out)
		_, existed, err := ix.InsertKey(k, kv.NewValuePointer(1, uint64(i), kv.Int), true)
		require.NoError(t, err)
		require.False(t, existed)
		keys = append(keys, k)
	}
	require.Greater(t, ix.IndirectUsed(), uint64(0))

	for i, k := range keys {
		got, ok := ix.LookupLocal(k)
		require.True(t, ok, "key %d", i)
		require.Equal(t, uint64(i), got.Ptr.Offset())
	}
}

func TestInsertCapacityExhausted(t *testing.T) {
	// Total capacity is 3 main data slots + 1 indirect data slot = 4, no
	// matter how hash(k) distributes the keys across main buckets, so
	// inserting more than that must eventually report CapacityExhausted.
	ix := newTestIndex(t, 2, 3, 1)
	var lastErr error
	for i := 0; i < 10; i++ {
		_, _, err := ix.InsertKey(key(uint64(i), 1, ids.Out), kv.NewValuePointer(1, 0, kv.Int), true)
		if err != nil {
			lastErr = err
			break
		}
	}
	require.Error(t, lastErr)
	var capErr *CapacityExhaustedError
	require.ErrorAs(t, lastErr, &capErr)
}

func TestUpdateValue(t *testing.T) {
	ix := newTestIndex(t, 4, 7, 4)
	k := key(3, 1, ids.Out)
	_, _, err := ix.InsertKey(k, kv.NewValuePointer(1, 0, kv.Int), true)
	require.NoError(t, err)

	ok := ix.UpdateValue(k, kv.NewValuePointer(5, 5, kv.Int))
	require.True(t, ok)

	got, found := ix.LookupLocal(k)
	require.True(t, found)
	require.Equal(t, uint64(5), got.Ptr.Size())
	require.Equal(t, uint64(5), got.Ptr.Offset())

	require.False(t, ix.UpdateValue(key(999, 1, ids.Out), kv.NewValuePointer(1, 1, kv.Int)))
}

func TestScanAllVisitsEveryOccupiedSlot(t *testing.T) {
	ix := newTestIndex(t, 4, 7, 4)
	want := map[kv.Key]bool{}
	for i := 0; i < 10; i++ {
		k := key(uint64(i), 2, ids.In)
		_, _, err := ix.InsertKey(k, kv.NewValuePointer(1, uint64(i), kv.Int), true)
		require.NoError(t, err)
		want[k] = true
	}

	got := map[kv.Key]bool{}
	ix.ScanAll(func(idx uint64, s kv.Slot) bool {
		got[s.Key] = true
		return true
	})
	require.Equal(t, want, got)
}

func TestScanAllCanStopEarly(t *testing.T) {
	ix := newTestIndex(t, 4, 7, 4)
	for i := 0; i < 5; i++ {
		_, _, err := ix.InsertKey(key(uint64(i), 1, ids.Out), kv.NewValuePointer(1, 0, kv.Int), true)
		require.NoError(t, err)
	}
	count := 0
	ix.ScanAll(func(idx uint64, s kv.Slot) bool {
		count++
		return false
	})
	require.Equal(t, 1, count)
}

func TestRefreshClearsIndex(t *testing.T) {
	ix := newTestIndex(t, 4, 7, 4)
	k := key(1, 1, ids.Out)
	_, _, err := ix.InsertKey(k, kv.NewValuePointer(1, 0, kv.Int), true)
	require.NoError(t, err)
	require.Greater(t, ix.IndirectUsed()+1, uint64(0))

	ix.Refresh()
	_, ok := ix.LookupLocal(k)
	require.False(t, ok)
	require.Equal(t, uint64(0), ix.IndirectUsed())
}
