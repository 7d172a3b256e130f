package dispatch

import (
	"sync"
	"time"
)

// Metrics is the dispatcher's externally visible state snapshot.
type Metrics struct {
	Running            bool    `json:"running"`
	TotalTrades        uint64  `json:"total_trades"`
	DecisionsPerSecond uint64  `json:"decisions_per_second"`
	QueueDepth         int     `json:"queue_depth"`
	Workers            int     `json:"workers"`
	Dropped            uint64  `json:"dropped"`
	SuccessRate        float64 `json:"success_rate"`
}

// throughput keeps a rolling one-second decisions counter plus cumulative
// totals. Cumulative counters survive Stop/Start; only the rolling window
// resets as second boundaries pass.
type throughput struct {
	mu            sync.Mutex
	windowStart   time.Time
	windowCount   uint64
	lastWindowDPS uint64
	totalTrades   uint64
	successes     uint64
	now           func() time.Time
}

func newThroughput(now func() time.Time) *throughput {
	return &throughput{windowStart: now(), now: now}
}

// recordDecision counts one produced outcome, rolling the one-second window
// when a full second has elapsed.
func (t *throughput) recordDecision(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if now.Sub(t.windowStart) >= time.Second {
		t.lastWindowDPS = t.windowCount
		t.windowCount = 0
		t.windowStart = now
	}
	t.windowCount++
	t.totalTrades++
	if success {
		t.successes++
	}
}

// dps returns the decisions-per-second reading: the last completed window,
// or the in-progress count when no window has completed yet.
func (t *throughput) dps() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.now().Sub(t.windowStart) >= time.Second {
		return 0
	}
	if t.lastWindowDPS > 0 {
		return t.lastWindowDPS
	}
	return t.windowCount
}

func (t *throughput) totals() (trades, successes uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalTrades, t.successes
}
