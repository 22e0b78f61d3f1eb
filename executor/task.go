package executor

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TaskID identifies a submitted task for cancellation and deadline reporting
type TaskID string

// Lane names a scheduling lane
type Lane int

const (
	// LaneCritical is the fixed-size pool reserved for short-deadline work
	LaneCritical Lane = iota
	// LaneBestEffort is the larger pool draining the priority queue
	LaneBestEffort
)

func (l Lane) String() string {
	switch l {
	case LaneCritical:
		return "critical"
	case LaneBestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

// task is the unit of scheduled work. The lane is decided once at submission
// and never changes; deadline is absolute (zero means none).
type task struct {
	id        TaskID
	lane      Lane
	priority  int
	deadline  time.Time
	submitted time.Time
	seq       uint64
	work      func()

	cancelled atomic.Bool

	// heap bookkeeping, best-effort lane only; -1 when not queued
	index int
}

func newTask(lane Lane, priority int, deadline time.Time, seq uint64, work func()) *task {
	return &task{
		id:        TaskID(uuid.NewString()),
		lane:      lane,
		priority:  priority,
		deadline:  deadline,
		submitted: time.Now(),
		seq:       seq,
		work:      work,
		index:     -1,
	}
}

// before defines best-effort dispatch order: higher priority first, then the
// earlier deadline (tasks without one sort after tasks with one), then
// submission order.
func (t *task) before(other *task) bool {
	if t.priority != other.priority {
		return t.priority > other.priority
	}
	td, od := t.deadline, other.deadline
	switch {
	case td.IsZero() && od.IsZero():
		// fall through to seq
	case td.IsZero():
		return false
	case od.IsZero():
		return true
	case !td.Equal(od):
		return td.Before(od)
	}
	return t.seq < other.seq
}
