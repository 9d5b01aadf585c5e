package stats

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCacheMaintainerRecomputesExactlyOncePerExpiry(t *testing.T) {
	c := newCacheMaintainer[int](50 * time.Millisecond)
	now := time.Now()

	var recomputes atomic.Int32
	compute := func() int {
		recomputes.Add(1)
		return 7
	}

	// Prime the cache, then let every reader arrive after it expires: a
	// cold cache lets CAS losers compute their own copy, an expired one
	// does not.
	c.get(now, compute)
	recomputes.Store(0)
	expired := now.Add(50 * time.Millisecond)

	var wg sync.WaitGroup
	results := make([]int, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.get(expired, compute)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), recomputes.Load())
	for _, r := range results {
		require.Equal(t, 7, r)
	}
}

func TestCacheMaintainerRefreshesAfterTTL(t *testing.T) {
	c := newCacheMaintainer[int](10 * time.Millisecond)
	now := time.Now()

	calls := 0
	compute := func() int {
		calls++
		return calls
	}

	first := c.get(now, compute)
	require.Equal(t, 1, first)

	second := c.get(now, compute)
	require.Equal(t, 1, second)

	later := now.Add(20 * time.Millisecond)
	third := c.get(later, compute)
	require.Equal(t, 2, third)
}
