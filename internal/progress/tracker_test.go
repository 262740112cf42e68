package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRateNeedsTwoSamples(t *testing.T) {
	tr := NewTracker()
	base := time.Now()

	_, ok := tr.Rate("a")
	assert.False(t, ok, "no samples should mean unknown rate")

	tr.Record("a", base, 0)
	_, ok = tr.Rate("a")
	assert.False(t, ok, "a single sample should mean unknown rate")

	tr.Record("a", base.Add(time.Second), 1024)
	rate, ok := tr.Rate("a")
	require.True(t, ok)
	assert.InDelta(t, 1024.0, rate, 0.01)
}

func TestTrackerRateUsesWindow(t *testing.T) {
	tr := NewTracker()
	base := time.Now()

	// Old samples fall out of the window; the rate reflects recent history.
	tr.Record("a", base, 0)
	tr.Record("a", base.Add(20*time.Second), 1000)
	tr.Record("a", base.Add(22*time.Second), 5000)

	rate, ok := tr.Rate("a")
	require.True(t, ok)
	assert.InDelta(t, 2000.0, rate, 0.01)
}

func TestTrackerETA(t *testing.T) {
	tr := NewTracker()
	base := time.Now()

	tr.Record("a", base, 0)
	tr.Record("a", base.Add(time.Second), 100)

	eta, ok := tr.ETA("a", 100, 1100)
	require.True(t, ok)
	assert.InDelta(t, 10.0, eta.Seconds(), 0.1)

	_, ok = tr.ETA("a", 100, 0)
	assert.False(t, ok, "unknown total should mean unknown ETA")

	_, ok = tr.ETA("a", 1100, 1100)
	assert.False(t, ok, "a finished download has no ETA")
}

func TestTrackerDrop(t *testing.T) {
	tr := NewTracker()
	base := time.Now()

	tr.Record("a", base, 0)
	tr.Record("a", base.Add(time.Second), 100)
	tr.Drop("a")

	_, ok := tr.Rate("a")
	assert.False(t, ok)
}
