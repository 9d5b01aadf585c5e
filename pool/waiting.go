package pool

import (
	"sync"
	"time"

	"github.com/clusterrpc/clusterrpc/record"
)

// waitingWrite is a request queued because no channel was immediately
// writable.
type waitingWrite struct {
	req       *record.Request
	enqueued  time.Time
	firstOpen bool // true if this waiter is riding the socket's first write
}

// waitingQueue is an unbounded FIFO of waitingWrite entries, bounded
// only by memory per spec §4.1's channel-pool state. A mutex-protected
// slice is adequate here: the queue is drained in bulk under
// checkinChannel, never polled one entry at a time under contention the
// way the idle-entry FIFO is.
type waitingQueue struct {
	mu    sync.Mutex
	items []waitingWrite
}

func (q *waitingQueue) push(w waitingWrite) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, w)
}

// drainAll removes and returns every queued waiter, in FIFO order.
func (q *waitingQueue) drainAll() []waitingWrite {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	items := q.items
	q.items = nil
	return items
}

// removeStale removes and returns every waiter whose age exceeds
// timeout, leaving the rest (still FIFO-ordered) in the queue.
func (q *waitingQueue) removeStale(now time.Time, timeout time.Duration) []waitingWrite {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stale []waitingWrite
	fresh := q.items[:0:0]
	for _, w := range q.items {
		if now.Sub(w.enqueued) > timeout {
			stale = append(stale, w)
		} else {
			fresh = append(fresh, w)
		}
	}
	q.items = fresh
	return stale
}

func (q *waitingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
