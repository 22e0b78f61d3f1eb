package executor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ruvnet/agentic-robotics-sub000/errors"
	"github.com/ruvnet/agentic-robotics-sub000/latency"
	"github.com/ruvnet/agentic-robotics-sub000/metric"
)

// Default pool sizing. The critical pool stays small so its tasks never wait
// behind each other for long; the best-effort pool absorbs everything else.
const (
	DefaultCriticalWorkers   = 2
	DefaultBestEffortWorkers = 8
	DefaultCriticalThreshold = 10 * time.Millisecond
	DefaultCriticalQueueSize = 256
)

// completion status labels for the tasks_completed metric
const (
	statusOK             = "ok"
	statusMissedDeadline = "missed_deadline"
	statusCancelled      = "cancelled"
)

// Config sizes the two lanes. CriticalThreshold is the deadline at or below
// which a task is routed to the critical lane; tasks with no deadline or a
// looser one go best-effort.
type Config struct {
	CriticalWorkers   int
	BestEffortWorkers int
	CriticalThreshold time.Duration
	CriticalQueueSize int
}

// DefaultConfig returns the default lane sizing
func DefaultConfig() Config {
	return Config{
		CriticalWorkers:   DefaultCriticalWorkers,
		BestEffortWorkers: DefaultBestEffortWorkers,
		CriticalThreshold: DefaultCriticalThreshold,
		CriticalQueueSize: DefaultCriticalQueueSize,
	}
}

// Validate checks lane sizing
func (c Config) Validate() error {
	if c.CriticalWorkers < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"executor", "Validate", "critical_workers must be at least 1")
	}
	if c.BestEffortWorkers < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"executor", "Validate", "best_effort_workers must be at least 1")
	}
	if c.CriticalThreshold <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"executor", "Validate", "critical_threshold must be positive")
	}
	if c.CriticalQueueSize < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"executor", "Validate", "critical_queue_size must be at least 1")
	}
	return nil
}

// DeadlineMissHandler is called once per completed task that overran its
// deadline. It runs on the worker goroutine that finished the task, so it
// must be fast and must not block.
type DeadlineMissHandler func(id TaskID, overrun time.Duration)

// LaneStats are the always-on counters for one lane
type LaneStats struct {
	Submitted uint64
	Completed uint64
	Cancelled uint64
	Rejected  uint64
}

// Stats is a point-in-time view of executor activity
type Stats struct {
	Critical       LaneStats
	BestEffort     LaneStats
	DeadlineMisses uint64
}

type laneCounters struct {
	submitted atomic.Uint64
	completed atomic.Uint64
	cancelled atomic.Uint64
	rejected  atomic.Uint64
}

func (c *laneCounters) snapshot() LaneStats {
	return LaneStats{
		Submitted: c.submitted.Load(),
		Completed: c.completed.Load(),
		Cancelled: c.cancelled.Load(),
		Rejected:  c.rejected.Load(),
	}
}

// Executor runs submitted work on two isolated lanes. The critical lane is a
// fixed pool behind a bounded FIFO channel; the best-effort lane is a larger
// pool pulling from an ordered priority queue. The lanes share no locks, so
// a best-effort task blocked on a full subscriber queue cannot delay
// critical dispatch.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	critical        chan *task
	criticalPending sync.Map // TaskID -> *task, not yet dispatched
	bestEffort      *bestEffortLane

	seq     atomic.Uint64
	started atomic.Bool
	stopped atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	critCounters laneCounters
	beCounters   laneCounters
	misses       atomic.Uint64

	critLatency *latency.Tracker
	beLatency   *latency.Tracker

	onMiss atomic.Value // missHandler

	metrics *metric.Metrics
}

// missHandler wraps the callback so atomic.Value always stores one concrete
// type, including "no handler".
type missHandler struct {
	fn DeadlineMissHandler
}

// Option configures an Executor
type Option func(*Executor)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics. A nil registry is ignored.
func WithMetrics(reg *metric.MetricsRegistry) Option {
	return func(e *Executor) {
		if reg != nil {
			e.metrics = reg.CoreMetrics()
		}
	}
}

// New creates an executor with the given lane sizing. Call Start before
// submitting work.
func New(cfg Config, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{
		cfg:         cfg,
		logger:      slog.Default(),
		critical:    make(chan *task, cfg.CriticalQueueSize),
		bestEffort:  newBestEffortLane(),
		stopCh:      make(chan struct{}),
		critLatency: latency.NewTracker(),
		beLatency:   latency.NewTracker(),
	}
	e.onMiss.Store(missHandler{})
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Start launches both worker pools. The executor stops when ctx is cancelled
// or Stop is called, whichever comes first.
func (e *Executor) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "executor", "Start", "starting worker pools")
	}

	for i := 0; i < e.cfg.CriticalWorkers; i++ {
		e.wg.Add(1)
		go e.criticalWorker()
	}
	for i := 0; i < e.cfg.BestEffortWorkers; i++ {
		e.wg.Add(1)
		go e.bestEffortWorker()
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = e.Stop(time.Second)
		case <-e.stopCh:
		}
	}()

	e.logger.Info("executor started",
		"critical_workers", e.cfg.CriticalWorkers,
		"best_effort_workers", e.cfg.BestEffortWorkers,
		"critical_threshold", e.cfg.CriticalThreshold)
	return nil
}

// Stop shuts both lanes down. In-flight tasks run to completion; queued
// tasks that were never dispatched are abandoned. Returns ErrTimeout if the
// workers do not drain within the given duration.
func (e *Executor) Stop(timeout time.Duration) error {
	if !e.started.Load() {
		return errors.WrapInvalid(errors.ErrNotStarted, "executor", "Stop", "stopping worker pools")
	}
	if !e.stopped.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "executor", "Stop", "stopping worker pools")
	}

	close(e.stopCh)
	e.bestEffort.close()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("executor stopped")
		return nil
	case <-time.After(timeout):
		return errors.WrapExpected(errors.ErrTimeout, "executor", "Stop", "waiting for workers to finish")
	}
}

// Spawn submits work with a priority and an optional relative deadline
// (zero means none). Tasks whose deadline is at or below the critical
// threshold run on the critical lane; everything else is ordered into the
// best-effort queue by priority, deadline, then submission order. The lane
// is fixed at this point and the task never migrates.
//
// Critical submission never blocks: when the critical queue is full the
// task is rejected with ErrQueueFull rather than stalling the caller.
func (e *Executor) Spawn(priority int, deadline time.Duration, work func()) (TaskID, error) {
	if work == nil {
		return "", errors.WrapInvalid(errors.ErrInvalidConfig, "executor", "Spawn", "work function is nil")
	}
	if priority < 0 {
		return "", errors.WrapInvalid(errors.ErrInvalidPriority, "executor", "Spawn", "priority must be non-negative")
	}
	if !e.started.Load() {
		return "", errors.WrapInvalid(errors.ErrNotStarted, "executor", "Spawn", "submitting task")
	}
	if e.stopped.Load() {
		return "", errors.WrapExpected(errors.ErrShuttingDown, "executor", "Spawn", "submitting task")
	}

	lane := LaneBestEffort
	if deadline > 0 && deadline <= e.cfg.CriticalThreshold {
		lane = LaneCritical
	}

	var absDeadline time.Time
	if deadline > 0 {
		absDeadline = time.Now().Add(deadline)
	}
	t := newTask(lane, priority, absDeadline, e.seq.Add(1), work)

	switch lane {
	case LaneCritical:
		e.criticalPending.Store(t.id, t)
		select {
		case e.critical <- t:
		default:
			e.criticalPending.Delete(t.id)
			e.critCounters.rejected.Add(1)
			return "", errors.WrapExpected(errors.ErrQueueFull, "executor", "Spawn", "critical lane queue full")
		}
		e.critCounters.submitted.Add(1)
	default:
		if !e.bestEffort.push(t) {
			return "", errors.WrapExpected(errors.ErrShuttingDown, "executor", "Spawn", "submitting task")
		}
		e.beCounters.submitted.Add(1)
	}

	if e.metrics != nil {
		e.metrics.TasksSubmitted.WithLabelValues(lane.String()).Inc()
	}
	return t.id, nil
}

// Cancel removes a not-yet-dispatched task. Returns true if the task was
// prevented from running; false means it already ran, is running, or the id
// is unknown. A running task is never interrupted.
func (e *Executor) Cancel(id TaskID) bool {
	if v, ok := e.criticalPending.Load(id); ok {
		t := v.(*task)
		if t.cancelled.CompareAndSwap(false, true) {
			e.criticalPending.Delete(id)
			e.critCounters.cancelled.Add(1)
			e.recordOutcome(LaneCritical, statusCancelled)
			return true
		}
		return false
	}
	if e.bestEffort.remove(id) {
		e.beCounters.cancelled.Add(1)
		e.recordOutcome(LaneBestEffort, statusCancelled)
		return true
	}
	return false
}

// OnDeadlineMiss registers the callback invoked once per missed deadline
// with the amount by which the task overran. Passing nil clears it. The
// miss metric is counted regardless of whether a callback is registered.
func (e *Executor) OnDeadlineMiss(fn DeadlineMissHandler) {
	e.onMiss.Store(missHandler{fn: fn})
}

func (e *Executor) criticalWorker() {
	defer e.wg.Done()
	for {
		select {
		case t := <-e.critical:
			e.criticalPending.Delete(t.id)
			e.run(t, &e.critCounters, e.critLatency)
		case <-e.stopCh:
			return
		}
	}
}

func (e *Executor) bestEffortWorker() {
	defer e.wg.Done()
	for {
		t := e.bestEffort.pop()
		if t == nil {
			return
		}
		e.run(t, &e.beCounters, e.beLatency)
	}
}

// run executes one task and does the post-completion bookkeeping: latency
// sample, completion counters, and deadline-miss reporting. Deadline misses
// are advisory; the task's effects stand.
func (e *Executor) run(t *task, counters *laneCounters, tracker *latency.Tracker) {
	if t.cancelled.Load() {
		return
	}

	t.work()
	completed := time.Now()

	elapsed := completed.Sub(t.submitted)
	tracker.Record(elapsed)
	counters.completed.Add(1)

	status := statusOK
	if !t.deadline.IsZero() && completed.After(t.deadline) {
		status = statusMissedDeadline
		overrun := completed.Sub(t.deadline)
		e.misses.Add(1)
		if e.metrics != nil {
			e.metrics.DeadlineMisses.Inc()
			e.metrics.DeadlineOverrun.Observe(overrun.Seconds())
		}
		if h := e.onMiss.Load().(missHandler); h.fn != nil {
			h.fn(t.id, overrun)
		}
		e.logger.Warn("task missed deadline",
			"task_id", string(t.id), "lane", t.lane.String(), "overrun", overrun)
	}

	if e.metrics != nil {
		e.metrics.TasksCompleted.WithLabelValues(t.lane.String(), status).Inc()
		e.metrics.TaskLatency.WithLabelValues(t.lane.String()).Observe(elapsed.Seconds())
	}
}

func (e *Executor) recordOutcome(lane Lane, status string) {
	if e.metrics != nil {
		e.metrics.TasksCompleted.WithLabelValues(lane.String(), status).Inc()
	}
}

// Stats returns the always-on counters for both lanes
func (e *Executor) Stats() Stats {
	return Stats{
		Critical:       e.critCounters.snapshot(),
		BestEffort:     e.beCounters.snapshot(),
		DeadlineMisses: e.misses.Load(),
	}
}

// Latency returns the schedule-to-completion latency summary for a lane
func (e *Executor) Latency(lane Lane) latency.Snapshot {
	if lane == LaneCritical {
		return e.critLatency.Snapshot()
	}
	return e.beLatency.Snapshot()
}

// QueueDepth reports the number of queued, not-yet-dispatched tasks per lane
func (e *Executor) QueueDepth(lane Lane) int {
	if lane == LaneCritical {
		return len(e.critical)
	}
	return e.bestEffort.depth()
}
