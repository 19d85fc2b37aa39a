package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNearestPrimeAtMostSmall(t *testing.T) {
	require.Equal(t, uint64(2), NearestPrimeAtMost(0))
	require.Equal(t, uint64(2), NearestPrimeAtMost(1))
	require.Equal(t, uint64(2), NearestPrimeAtMost(2))
	require.Equal(t, uint64(3), NearestPrimeAtMost(3))
	require.Equal(t, uint64(3), NearestPrimeAtMost(4))
	require.Equal(t, uint64(7), NearestPrimeAtMost(8))
	require.Equal(t, uint64(7), NearestPrimeAtMost(10))
}

func TestNearestPrimeAtMostTableBoundary(t *testing.T) {
	require.Equal(t, uint64(11), NearestPrimeAtMost(11))
	require.Equal(t, uint64(11), NearestPrimeAtMost(16))
	require.Equal(t, uint64(17), NearestPrimeAtMost(17))
	last := primeTable[len(primeTable)-1]
	require.Equal(t, last, NearestPrimeAtMost(last))
}

func TestNearestPrimeAtMostBeyondTable(t *testing.T) {
	last := primeTable[len(primeTable)-1]
	got := NearestPrimeAtMost(last + 10000)
	require.True(t, isPrime(got))
	require.LessOrEqual(t, got, last+10000)
}

func TestNearestPrimeAtMostResultIsPrimeAndLE(t *testing.T) {
	for _, n := range []uint64{5, 12, 100, 1000, 50000} {
		got := NearestPrimeAtMost(n)
		require.True(t, isPrime(got), "NearestPrimeAtMost(%d)=%d not prime", n, got)
		require.LessOrEqual(t, got, n)
	}
}
