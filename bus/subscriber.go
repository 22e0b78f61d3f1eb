package bus

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ruvnet/agentic-robotics-sub000/codec"
	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

// Subscriber is a per-topic reader owning one bounded delivery queue. The
// queue is created when the subscriber registers and destroyed when it
// closes; it is never shared between subscribers.
type Subscriber struct {
	id       string
	registry *Registry
	topic    string
	queue    *deliveryQueue
	logger   *slog.Logger
	closed   atomic.Bool

	// Statistics (atomic, always tracked)
	messagesReceived atomic.Uint64
	bytesReceived    atomic.Uint64
}

// SubscriberStats is a point-in-time snapshot of a subscriber's counters
type SubscriberStats struct {
	MessagesReceived uint64
	BytesReceived    uint64
	Dropped          uint64
}

// NewSubscriber registers a new bounded delivery queue under the topic and
// returns its owning handle. Capacity must be at least 1.
func NewSubscriber(registry *Registry, topic string, capacity int, policy OverflowPolicy) (*Subscriber, error) {
	if registry == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil registry"), "Subscriber", "NewSubscriber", "construction")
	}
	if topic == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("empty topic"), "Subscriber", "NewSubscriber", "construction")
	}
	if capacity < 1 {
		return nil, errors.WrapInvalid(errors.ErrInvalidCapacity,
			"Subscriber", "NewSubscriber", "construction")
	}

	s := &Subscriber{
		id:       uuid.NewString(),
		registry: registry,
		topic:    topic,
		queue:    newDeliveryQueue(capacity, policy),
		logger:   registry.logger.With("topic", topic, "policy", policy.String()),
	}

	if registry.metrics != nil {
		dropped := registry.metrics.MessagesDropped.WithLabelValues(topic, policy.String())
		s.queue.onDrop = dropped.Inc
	}

	registry.subscribe(topic, s.queue)
	return s, nil
}

// ID returns the subscriber's unique identity
func (s *Subscriber) ID() string { return s.id }

// Topic returns the topic this subscriber reads from
func (s *Subscriber) Topic() string { return s.topic }

// Pending returns the current depth of the delivery queue
func (s *Subscriber) Pending() int { return s.queue.pending() }

// TryReceive pops the oldest queued message without blocking. The second
// return value is false when the queue is empty; a decode failure is returned
// as an error, never disguised as an empty queue.
func (s *Subscriber) TryReceive() (codec.Payload, bool, error) {
	env, ok, err := s.queue.tryPop()
	if err != nil {
		return nil, false, errors.WrapExpected(err, "Subscriber", "TryReceive", "queue pop")
	}
	if !ok {
		return nil, false, nil
	}
	payload, err := s.consume(env)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// ReceiveWithTimeout pops the oldest queued message, blocking the caller up
// to the given duration. Expiry is a typed ErrTimeout result, not an
// exceptional condition.
func (s *Subscriber) ReceiveWithTimeout(timeout time.Duration) (codec.Payload, error) {
	env, err := s.queue.popWait(timeout)
	if err != nil {
		return nil, errors.WrapExpected(err, "Subscriber", "ReceiveWithTimeout", "queue pop")
	}
	return s.consume(env)
}

// consume decodes an envelope, settles stats, and drops the queue's reference
func (s *Subscriber) consume(env envelope) (codec.Payload, error) {
	defer env.release()

	payload, err := env.decode()
	if err != nil {
		if s.registry.metrics != nil {
			s.registry.metrics.SerializationErrors.WithLabelValues(env.format.String(), "decode").Inc()
		}
		return nil, err
	}

	s.messagesReceived.Add(1)
	s.bytesReceived.Add(uint64(env.size()))
	if s.registry.metrics != nil {
		s.registry.metrics.MessagesDelivered.WithLabelValues(s.topic).Inc()
	}
	return payload, nil
}

// Stats returns the subscriber's counters without blocking the queue
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		MessagesReceived: s.messagesReceived.Load(),
		BytesReceived:    s.bytesReceived.Load(),
		Dropped:          s.queue.dropped.Load(),
	}
}

// Close unregisters the subscriber and destroys its queue. In-flight pushes
// racing the close either land and are released with the queue or observe it
// closed and skip; either way no torn state is possible because encoding
// finished before any push began. Close is idempotent.
func (s *Subscriber) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.registry.unsubscribe(s.topic, s.queue)
	s.queue.close()
	s.logger.Debug("subscriber closed", "id", s.id)
	return nil
}
