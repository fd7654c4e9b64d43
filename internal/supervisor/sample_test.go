package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSampleEventStartsFlushedAtZero(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	e := newSampleEvent(now)

	require.True(t, e.recorded)
	require.Equal(t, uint64(0), e.sizeAtSample)
	require.Equal(t, now, e.sampledAt)
}

func TestMaybeSampleRequiresBothGrowthAndWindow(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	e := newSampleEvent(t0)
	window := 9 * time.Second

	// Growth without enough elapsed time: no-op.
	e.maybeSample(10, t0.Add(1*time.Second), window)
	require.True(t, e.recorded)
	require.Equal(t, uint64(0), e.sizeAtSample)

	// Enough time but no growth: no-op.
	e.maybeSample(0, t0.Add(10*time.Second), window)
	require.True(t, e.recorded)

	// Both conditions satisfied: a new pending sample is stamped.
	e.maybeSample(10, t0.Add(10*time.Second), window)
	require.False(t, e.recorded)
	require.Equal(t, uint64(10), e.sizeAtSample)
	require.Equal(t, t0.Add(10*time.Second), e.sampledAt)
}

func TestForceAlwaysStampsRegardlessOfWindow(t *testing.T) {
	t0 := time.Unix(1_700_000_000, 0)
	e := newSampleEvent(t0)
	e.recorded = true

	e.force(42, t0.Add(time.Millisecond))

	require.False(t, e.recorded)
	require.Equal(t, uint64(42), e.sizeAtSample)
}
