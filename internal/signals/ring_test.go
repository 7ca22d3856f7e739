package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickRingFIFO(t *testing.T) {
	r := newTickRing(3)
	for i := 0; i < 5; i++ {
		r.Push(tick{at: t0.Add(time.Duration(i) * time.Second), price: float64(100 + i), volume: float64(i)})
	}
	// Capacity never exceeded; oldest evicted first.
	assert.Equal(t, 3, r.Len())
	oldest, ok := r.Oldest()
	require.True(t, ok)
	assert.Equal(t, 102.0, oldest.price)
	newest, ok := r.Newest()
	require.True(t, ok)
	assert.Equal(t, 104.0, newest.price)
}

func TestTickRingEmpty(t *testing.T) {
	r := newTickRing(4)
	_, ok := r.Oldest()
	assert.False(t, ok)
	_, ok = r.Newest()
	assert.False(t, ok)
	assert.Zero(t, r.MeanVolumeDelta())
}

func TestMeanVolumeDelta(t *testing.T) {
	r := newTickRing(5)
	for i, v := range []float64{1000, 1150, 1250} {
		r.Push(tick{at: t0.Add(time.Duration(i) * time.Second), volume: v})
	}
	// Deltas 150 and 100.
	assert.InDelta(t, 125.0, r.MeanVolumeDelta(), 1e-9)
}

func TestMeanVolumeDeltaIgnoresResets(t *testing.T) {
	r := newTickRing(5)
	for i, v := range []float64{1000, 1100, 50, 150} {
		r.Push(tick{at: t0.Add(time.Duration(i) * time.Second), volume: v})
	}
	// Deltas 100, -1050 (counted as 0), 100 over 3 gaps.
	assert.InDelta(t, 200.0/3.0, r.MeanVolumeDelta(), 1e-9)
}
