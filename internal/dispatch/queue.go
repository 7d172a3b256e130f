package dispatch

import (
	"sync"

	"github.com/alanyoungcy/oppbot/internal/domain"
)

// queue is a bounded FIFO opportunity buffer. Backpressure is by drop:
// enqueueing into a full queue discards the opportunity without blocking
// the producer.
type queue struct {
	mu       sync.Mutex
	items    []domain.Opportunity
	capacity int
	dropped  uint64
}

func newQueue(capacity int) *queue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &queue{capacity: capacity}
}

// push appends the opportunity. It reports false when the queue was full
// and the item was dropped.
func (q *queue) push(opp domain.Opportunity) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		q.dropped++
		return false
	}
	q.items = append(q.items, opp)
	return true
}

// popBatch atomically removes up to n items from the head in FIFO order.
func (q *queue) popBatch(n int) []domain.Opportunity {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]domain.Opportunity, n)
	copy(batch, q.items[:n])
	rest := len(q.items) - n
	copy(q.items, q.items[n:])
	q.items = q.items[:rest]
	return batch
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
