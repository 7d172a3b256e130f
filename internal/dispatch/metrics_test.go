package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThroughputRollingWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tp := newThroughput(clock)

	for i := 0; i < 5; i++ {
		tp.recordDecision(true)
	}
	assert.EqualValues(t, 5, tp.dps(), "in-progress window counts before a full second elapses")

	// Cross the second boundary: the completed window becomes the reading.
	now = now.Add(1100 * time.Millisecond)
	tp.recordDecision(false)
	assert.EqualValues(t, 5, tp.dps())

	trades, successes := tp.totals()
	assert.EqualValues(t, 6, trades)
	assert.EqualValues(t, 5, successes)
}

func TestThroughputGoesStaleToZero(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tp := newThroughput(func() time.Time { return now })

	tp.recordDecision(true)
	now = now.Add(3 * time.Second)
	assert.EqualValues(t, 0, tp.dps(), "no decisions in the current second reads as zero")
}
