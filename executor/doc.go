// Package executor schedules application work on two isolated lanes.
//
// The critical lane is a small fixed pool behind a bounded FIFO channel,
// reserved for tasks whose deadline is at or below a configured threshold.
// The best-effort lane is a larger pool whose workers pull from an explicit
// priority queue ordered by priority, then deadline, then submission order.
// Lane assignment happens once at Spawn and the two lanes share no locks,
// so backlog or blocking in the best-effort lane cannot delay critical
// dispatch.
//
// Deadlines are advisory: a task that overruns still completes and its
// effects stand. The overrun is reported once through the OnDeadlineMiss
// callback and counted in the executor metrics. Schedule-to-completion
// latency is recorded per lane into a wait-free histogram so the numbers
// used to validate deadline behavior are themselves trustworthy under
// contention.
package executor
