package stats

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPerNodeTrackerBeginEndRecordsLatency(t *testing.T) {
	tr := NewPerNodeTracker(time.Minute)
	id := uuid.New()
	start := time.Now()

	tr.BeginRequest(id, start)
	require.Equal(t, 1, tr.PendingCount(start))

	end := start.Add(25 * time.Millisecond)
	tr.EndRequest(id, end)

	require.Equal(t, 0, tr.PendingCount(end.Add(time.Second)))
	require.Equal(t, float64(25), tr.Percentile(end.Add(time.Second), 0.99))
}

func TestPerNodeTrackerEndWithoutBeginIsNoop(t *testing.T) {
	tr := NewPerNodeTracker(time.Minute)
	tr.EndRequest(uuid.New(), time.Now())
	require.Equal(t, float64(0), tr.Percentile(time.Now(), 0.99))
}

func TestPerNodeTrackerPercentileEmptyWindowReturnsZero(t *testing.T) {
	tr := NewPerNodeTracker(time.Minute)
	require.Equal(t, float64(0), tr.Percentile(time.Now(), 0.5))
}

func TestPerNodeTrackerHealthScoreWorsensWithPendingLoad(t *testing.T) {
	tr := NewPerNodeTracker(time.Minute)
	now := time.Now()

	idle := tr.HealthScore(now, 10, 0)

	for i := 0; i < 5; i++ {
		tr.BeginRequest(uuid.New(), now)
	}
	busy := tr.HealthScore(now.Add(time.Second), 10, 0)

	require.Greater(t, busy, idle)
}
