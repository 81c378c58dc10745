package engine

import (
	"sync"

	"github.com/beeper/cfu-relay/internal/metrics"
)

// Queue hands filled response buffers from any number of producers to a
// single consumer. Notify wakes the consumer; wakes coalesce, so one wake
// may be followed by a Drain that returns a whole burst.
type Queue struct {
	mu    sync.Mutex
	items []*Buffer
	ready chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) Enqueue(b *Buffer) {
	q.mu.Lock()
	q.items = append(q.items, b)
	q.mu.Unlock()
	metrics.QueueDepth.Inc()
}

// Notify signals that work is ready. It never blocks.
func (q *Queue) Notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes and returns everything queued, in enqueue order.
func (q *Queue) Drain() []*Buffer {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	metrics.QueueDepth.Sub(float64(len(items)))
	return items
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
