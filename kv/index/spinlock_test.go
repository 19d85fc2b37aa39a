package index

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpinlockLockUnlock(t *testing.T) {
	var s Spinlock
	s.Lock()
	require.True(t, true) // acquired without blocking forever
	s.Unlock()

	ok := s.TryLock()
	require.True(t, ok)
	s.Unlock()
}

func TestSpinlockTryLockContended(t *testing.T) {
	var s Spinlock
	s.Lock()
	require.False(t, s.TryLock())
	s.Unlock()
	require.True(t, s.TryLock())
	s.Unlock()
}

func TestSpinlockTableForIsStable(t *testing.T) {
	tbl := NewSpinlockTable(8)
	require.Same(t, tbl.For(3), tbl.For(3))
	require.Same(t, tbl.For(3), tbl.For(11)) // 11 % 8 == 3
}

func TestSpinlockMutualExclusion(t *testing.T) {
	var s Spinlock
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Lock()
			counter++
			s.Unlock()
		}()
	}
	wg.Wait()
	require.Equal(t, 50, counter)
}
