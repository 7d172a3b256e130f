package decision

import (
	"sync"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// windowCap bounds the rolling outcome window per category.
const windowCap = 100

type sample struct {
	success bool
	profit  float64
}

// historyBook holds the per-category rolling outcome windows the engine
// feeds on. Writers are the dispatcher's outcome recorders, which run
// concurrently, so every mutation happens under the lock.
type historyBook struct {
	mu      sync.RWMutex
	windows map[domain.Category][]sample
	totals  map[domain.Category]int64
}

func newHistoryBook() *historyBook {
	return &historyBook{
		windows: make(map[domain.Category][]sample),
		totals:  make(map[domain.Category]int64),
	}
}

// record pushes an outcome into the category window, evicting the oldest
// entry once the window is full.
func (h *historyBook) record(cat domain.Category, success bool, profit float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.windows[cat]
	w = append(w, sample{success: success, profit: profit})
	if len(w) > windowCap {
		w = w[len(w)-windowCap:]
	}
	h.windows[cat] = w
	h.totals[cat]++
}

// view returns the aggregate for the category and whether any outcomes have
// been recorded.
func (h *historyBook) view(cat domain.Category) (domain.PerformanceHistory, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	w := h.windows[cat]
	if len(w) == 0 {
		return domain.PerformanceHistory{Category: cat}, false
	}
	var successes int
	var profitSum float64
	for _, s := range w {
		if s.success {
			successes++
		}
		profitSum += s.profit
	}
	return domain.PerformanceHistory{
		Category:    cat,
		SuccessRate: float64(successes) / float64(len(w)),
		AvgProfit:   profitSum / float64(len(w)),
		TotalTrades: h.totals[cat],
	}, true
}

// windowLen reports the current window size for the category.
func (h *historyBook) windowLen(cat domain.Category) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.windows[cat])
}
