// Package latency provides a wait-free latency tracker for hot paths.
//
// Recording a sample is a single atomic increment on a power-of-two bucket
// plus a CAS loop for the running maximum; there are no locks, allocations,
// or channels on the record path, so executor workers can call Record from
// inside task completion without perturbing the latencies they measure.
// Percentile estimates are read from a point-in-time copy of the buckets and
// resolve to a bucket upper bound, so they are conservative by at most one
// power of two.
package latency

import (
	"math/bits"
	"sync/atomic"
	"time"
)

// bucketCount covers 1us through ~35 minutes in power-of-two steps. Samples
// beyond the last bound land in the final bucket.
const bucketCount = 32

// Tracker accumulates duration samples into logarithmic buckets. The zero
// value is not usable; create trackers with NewTracker. All methods are safe
// for concurrent use.
type Tracker struct {
	buckets [bucketCount]atomic.Uint64
	count   atomic.Uint64
	sum     atomic.Uint64 // microseconds
	max     atomic.Uint64 // microseconds
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// bucketIndex maps a microsecond value to its power-of-two bucket. Bucket i
// holds samples in (2^(i-1), 2^i] microseconds, with bucket 0 holding
// everything at or below 1us.
func bucketIndex(micros uint64) int {
	if micros <= 1 {
		return 0
	}
	idx := bits.Len64(micros - 1)
	if idx >= bucketCount {
		return bucketCount - 1
	}
	return idx
}

// bucketBound returns the inclusive upper bound of a bucket in microseconds
func bucketBound(idx int) time.Duration {
	return time.Duration(uint64(1)<<uint(idx)) * time.Microsecond
}

// Record adds one sample. Negative durations count as zero.
func (t *Tracker) Record(d time.Duration) {
	if d < 0 {
		d = 0
	}
	micros := uint64(d / time.Microsecond)

	t.buckets[bucketIndex(micros)].Add(1)
	t.count.Add(1)
	t.sum.Add(micros)

	for {
		cur := t.max.Load()
		if micros <= cur {
			return
		}
		if t.max.CompareAndSwap(cur, micros) {
			return
		}
	}
}

// Count returns the number of recorded samples
func (t *Tracker) Count() uint64 {
	return t.count.Load()
}

// Max returns the largest recorded sample
func (t *Tracker) Max() time.Duration {
	return time.Duration(t.max.Load()) * time.Microsecond
}

// Mean returns the arithmetic mean of all samples, zero when empty
func (t *Tracker) Mean() time.Duration {
	n := t.count.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(t.sum.Load()/n) * time.Microsecond
}

// Percentile estimates the duration at or below which the given fraction of
// samples fall. p is clamped to [0,1]; an empty tracker reports zero. The
// estimate is the upper bound of the bucket containing the target rank,
// except for the top bucket where the observed maximum is tighter.
func (t *Tracker) Percentile(p float64) time.Duration {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	var counts [bucketCount]uint64
	var total uint64
	for i := range t.buckets {
		counts[i] = t.buckets[i].Load()
		total += counts[i]
	}
	if total == 0 {
		return 0
	}

	rank := uint64(p * float64(total))
	if rank >= total {
		rank = total - 1
	}

	var seen uint64
	for i, c := range counts {
		seen += c
		if seen > rank {
			if i == bucketCount-1 {
				return t.Max()
			}
			return bucketBound(i)
		}
	}
	return t.Max()
}

// Snapshot is a point-in-time summary of a tracker
type Snapshot struct {
	Count uint64
	Mean  time.Duration
	Max   time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	P999  time.Duration
}

// Snapshot captures the common summary statistics in one pass. The buckets
// may be concurrently updated, so the percentiles are internally consistent
// only to within in-flight records.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Count: t.Count(),
		Mean:  t.Mean(),
		Max:   t.Max(),
		P50:   t.Percentile(0.50),
		P95:   t.Percentile(0.95),
		P99:   t.Percentile(0.99),
		P999:  t.Percentile(0.999),
	}
}

// Reset clears all recorded samples. Not linearizable with concurrent
// Records; intended for tests and between benchmark runs.
func (t *Tracker) Reset() {
	for i := range t.buckets {
		t.buckets[i].Store(0)
	}
	t.count.Store(0)
	t.sum.Store(0)
	t.max.Store(0)
}
