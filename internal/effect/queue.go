package effect

import (
	"sync"

	"github.com/tanho/flume/internal/engine"
)

// actionQueue is a thread-safe FIFO of pending trigger actions for a
// serialize-strategy runner.
//
// The queue is unbounded so a burst of matching dispatches never blocks
// the dispatch path. A buffered signal channel of size 1 coalesces
// wakeups and lets the runner wait with context awareness.
type actionQueue struct {
	mu     sync.Mutex
	items  []engine.Action
	closed bool
	signal chan struct{}
}

func newActionQueue() *actionQueue {
	return &actionQueue{
		items:  make([]engine.Action, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue adds an action to the back of the queue.
// Returns false if the queue is closed.
func (q *actionQueue) enqueue(act engine.Action) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, act)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue pops the front action without blocking.
func (q *actionQueue) tryDequeue() (engine.Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return engine.Action{}, false
	}

	act := q.items[0]

	// Nil the slot so the backing array does not retain the payload.
	q.items[0] = engine.Action{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return act, true
}

// wait returns the wakeup channel. It closes when the queue closes.
func (q *actionQueue) wait() <-chan struct{} {
	return q.signal
}

// length returns the number of pending actions.
func (q *actionQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drained reports whether the queue is closed with nothing left to
// process.
func (q *actionQueue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

// close marks the queue closed and wakes all waiters.
func (q *actionQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
