package executor

import (
	"container/heap"
	"sync"
)

// taskHeap orders pending best-effort tasks per task.before. It is a plain
// container/heap implementation; all synchronization lives in bestEffortLane.
type taskHeap []*task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].before(h[j]) }

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// bestEffortLane is the ordered queue feeding the best-effort pool. Workers
// pull exclusively from the heap; there is no direct submission route into
// the pool. Its mutex is touched only by best-effort submission, dispatch,
// and cancellation, never by the critical lane.
type bestEffortLane struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   taskHeap
	pending map[TaskID]*task
	closed  bool
}

func newBestEffortLane() *bestEffortLane {
	l := &bestEffortLane{
		pending: make(map[TaskID]*task),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// push enqueues a task; returns false once the lane is closed
func (l *bestEffortLane) push(t *task) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	heap.Push(&l.tasks, t)
	l.pending[t.id] = t
	l.mu.Unlock()

	l.cond.Signal()
	return true
}

// pop blocks until a task is available or the lane closes. Returns nil when
// closed; queued tasks remaining at close are abandoned, not run.
func (l *bestEffortLane) pop() *task {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		if l.closed {
			return nil
		}
		if l.tasks.Len() > 0 {
			t := heap.Pop(&l.tasks).(*task)
			delete(l.pending, t.id)
			return t
		}
		l.cond.Wait()
	}
}

// remove cancels a still-queued task by id. Returns false if the task has
// already been dispatched or never lived here.
func (l *bestEffortLane) remove(id TaskID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.pending[id]
	if !ok || t.index < 0 {
		return false
	}
	heap.Remove(&l.tasks, t.index)
	delete(l.pending, id)
	return true
}

// depth reports the number of queued, not-yet-dispatched tasks
func (l *bestEffortLane) depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Len()
}

// close wakes every waiting worker; idempotent
func (l *bestEffortLane) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
}
