package bus

import (
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"

	"github.com/ruvnet/agentic-robotics-sub000/codec"
	"github.com/ruvnet/agentic-robotics-sub000/metric"
)

// shardCount sizes the topic map's sharding. Power of two so the hash can be
// masked.
const shardCount = 16

// Registry is the process-wide topic map: topic name to the ordered list of
// live delivery queues. It is the only structure in the bus requiring mutual
// exclusion for mutation and is read-mostly: publishing takes a shard's read
// lock just long enough to snapshot the subscriber list, never across queue
// pushes. Pass the registry explicitly to publishers and subscribers; there
// is no package-level singleton.
type Registry struct {
	shards [shardCount]registryShard

	logger  *slog.Logger
	metrics *metric.Metrics
	pool    *codec.BufferPool
}

type registryShard struct {
	mu     sync.RWMutex
	topics map[string][]*deliveryQueue
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithLogger sets the structured logger used by the registry and every
// handle created against it
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics for the registry and every handle
// created against it. A nil registry is ignored.
func WithMetrics(reg *metric.MetricsRegistry) RegistryOption {
	return func(r *Registry) {
		if reg != nil {
			r.metrics = reg.CoreMetrics()
		}
	}
}

// WithBufferPool sets the encode buffer pool shared by publishers created
// against this registry
func WithBufferPool(pool *codec.BufferPool) RegistryOption {
	return func(r *Registry) {
		r.pool = pool
	}
}

// NewRegistry creates an empty topic registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger: slog.Default(),
		pool:   codec.NewBufferPool(codec.DefaultPoolBuffers, codec.DefaultPoolBufferSize),
	}
	for i := range r.shards {
		r.shards[i].topics = make(map[string][]*deliveryQueue)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Registry) shardFor(topic string) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(topic))
	return &r.shards[h.Sum32()&(shardCount-1)]
}

// subscribe registers a queue under a topic, creating the topic implicitly
func (r *Registry) subscribe(topic string, q *deliveryQueue) {
	s := r.shardFor(topic)
	s.mu.Lock()
	s.topics[topic] = append(s.topics[topic], q)
	s.mu.Unlock()

	if r.metrics != nil {
		r.metrics.Subscribers.WithLabelValues(topic).Inc()
	}
}

// unsubscribe removes a queue; the topic entry disappears with its last queue
func (r *Registry) unsubscribe(topic string, q *deliveryQueue) {
	s := r.shardFor(topic)
	s.mu.Lock()
	queues := s.topics[topic]
	for i, cand := range queues {
		if cand == q {
			queues = append(queues[:i], queues[i+1:]...)
			break
		}
	}
	if len(queues) == 0 {
		delete(s.topics, topic)
	} else {
		s.topics[topic] = queues
	}
	s.mu.Unlock()

	if r.metrics != nil {
		r.metrics.Subscribers.WithLabelValues(topic).Dec()
	}
}

// snapshot copies the current queue list for a topic under the read lock.
// Publishers fan out against the copy so a blocked queue never holds the
// topic-wide lock.
func (r *Registry) snapshot(topic string) []*deliveryQueue {
	s := r.shardFor(topic)
	s.mu.RLock()
	queues := s.topics[topic]
	if len(queues) == 0 {
		s.mu.RUnlock()
		return nil
	}
	out := make([]*deliveryQueue, len(queues))
	copy(out, queues)
	s.mu.RUnlock()
	return out
}

// prune lazily removes closed queues observed during a publish. The registry
// holds only non-owning references; a dropped subscriber costs nothing until
// the next publish sweeps it out.
func (r *Registry) prune(topic string) {
	s := r.shardFor(topic)
	s.mu.Lock()
	queues := s.topics[topic]
	live := queues[:0]
	removed := 0
	for _, q := range queues {
		if q.isClosed() {
			removed++
			continue
		}
		live = append(live, q)
	}
	if len(live) == 0 {
		delete(s.topics, topic)
	} else {
		s.topics[topic] = live
	}
	s.mu.Unlock()

	if removed > 0 {
		r.logger.Debug("pruned closed subscriber queues",
			"topic", topic, "removed", removed)
	}
}

// Topics returns the sorted names of all topics with at least one subscriber
func (r *Registry) Topics() []string {
	var names []string
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for name := range s.topics {
			names = append(names, name)
		}
		s.mu.RUnlock()
	}
	sort.Strings(names)
	return names
}

// SubscriberCount returns the number of registered subscribers for a topic
func (r *Registry) SubscriberCount(topic string) int {
	s := r.shardFor(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics[topic])
}
