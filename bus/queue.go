package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

// deliveryQueue is the bounded, ordered container owned by exactly one
// subscriber. Capacity is fixed at creation. Pushes come from any number of
// publishers; pops come only from the owning subscriber (multi-producer,
// single-consumer). Overflow behavior is governed by the queue's policy.
type deliveryQueue struct {
	mu       sync.Mutex
	items    []envelope
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	policy   OverflowPolicy

	notEmpty *sync.Cond
	notFull  *sync.Cond
	closed   bool

	dropped atomic.Uint64
	onDrop  func() // optional, metrics hook
}

func newDeliveryQueue(capacity int, policy OverflowPolicy) *deliveryQueue {
	q := &deliveryQueue{
		items:    make([]envelope, capacity),
		capacity: capacity,
		policy:   policy,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// push enqueues an envelope under the queue's overflow policy. The caller has
// already retained the envelope for this queue and releases it again if push
// returns an error. blockTimeout bounds the wait under the Block policy only.
func (q *deliveryQueue) push(env envelope, blockTimeout time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.ErrChannelClosed
	}

	if q.size == q.capacity {
		switch q.policy {
		case Reject:
			q.dropped.Add(1)
			if q.onDrop != nil {
				q.onDrop()
			}
			return errors.ErrQueueFull

		case EvictOldest:
			oldest := q.items[q.tail]
			q.items[q.tail] = envelope{}
			q.tail = (q.tail + 1) % q.capacity
			q.size--
			q.dropped.Add(1)
			if q.onDrop != nil {
				q.onDrop()
			}
			oldest.release()

		case Block:
			if !q.waitNotFull(blockTimeout) {
				return errors.ErrTimeout
			}
			if q.closed {
				return errors.ErrChannelClosed
			}
		}
	}

	q.items[q.head] = env
	q.head = (q.head + 1) % q.capacity
	q.size++
	q.notEmpty.Signal()
	return nil
}

// waitNotFull blocks until space frees up, the queue closes, or the timeout
// elapses. Returns true if there is space. Called with q.mu held.
func (q *deliveryQueue) waitNotFull(timeout time.Duration) bool {
	if timeout <= 0 {
		return q.size < q.capacity
	}

	deadline := time.Now().Add(timeout)
	// Cond has no timed wait; an AfterFunc broadcast bounds it. Broadcast
	// without the lock is allowed and wakes every waiter to recheck.
	timer := time.AfterFunc(timeout, q.notFull.Broadcast)
	defer timer.Stop()

	for q.size == q.capacity && !q.closed {
		if !time.Now().Before(deadline) {
			return false
		}
		q.notFull.Wait()
	}
	return q.size < q.capacity || q.closed
}

// tryPop removes the oldest envelope without blocking
func (q *deliveryQueue) tryPop() (envelope, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		if q.closed {
			return envelope{}, false, errors.ErrChannelClosed
		}
		return envelope{}, false, nil
	}
	return q.popLocked(), true, nil
}

// popWait removes the oldest envelope, blocking up to timeout
func (q *deliveryQueue) popWait(timeout time.Duration) (envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.size == 0 {
		deadline := time.Now().Add(timeout)
		timer := time.AfterFunc(timeout, q.notEmpty.Broadcast)
		defer timer.Stop()

		for q.size == 0 && !q.closed {
			if !time.Now().Before(deadline) {
				return envelope{}, errors.ErrTimeout
			}
			q.notEmpty.Wait()
		}
	}

	if q.size == 0 {
		if q.closed {
			return envelope{}, errors.ErrChannelClosed
		}
		return envelope{}, errors.ErrTimeout
	}
	return q.popLocked(), nil
}

func (q *deliveryQueue) popLocked() envelope {
	env := q.items[q.tail]
	q.items[q.tail] = envelope{}
	q.tail = (q.tail + 1) % q.capacity
	q.size--
	q.notFull.Signal()
	return env
}

// pending returns the current queue depth
func (q *deliveryQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// isClosed reports whether the owning subscriber has unregistered
func (q *deliveryQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// close marks the queue dead and releases everything still buffered. Safe to
// call more than once.
func (q *deliveryQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true

	var drained []envelope
	for q.size > 0 {
		drained = append(drained, q.popLocked())
	}
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()

	// Release buffers outside the lock
	for _, env := range drained {
		env.release()
	}
}
