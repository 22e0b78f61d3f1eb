package bus

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ruvnet/agentic-robotics-sub000/codec"
	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

// DefaultBlockTimeout bounds the per-queue wait a publisher tolerates when a
// subscriber uses the Block overflow policy.
const DefaultBlockTimeout = 100 * time.Millisecond

// Publisher is a per-topic writer bound to one wire format at construction.
// Publish encodes once and fans the encoded frame out to every live
// subscriber queue; one slow subscriber's backpressure never blocks or fails
// delivery to the others.
type Publisher struct {
	registry     *Registry
	topic        string
	format       codec.Format
	pool         *codec.BufferPool
	blockTimeout time.Duration
	logger       *slog.Logger

	// Statistics (atomic, always tracked)
	messagesSent atomic.Uint64
	bytesSent    atomic.Uint64
}

// PublisherStats is a point-in-time snapshot of a publisher's counters
type PublisherStats struct {
	MessagesSent uint64
	BytesSent    uint64
}

// PublisherOption configures a Publisher
type PublisherOption func(*Publisher)

// WithBlockTimeout sets how long Publish waits on a single Block-policy queue
func WithBlockTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.blockTimeout = d
		}
	}
}

// WithPublisherPool overrides the registry's shared encode buffer pool
func WithPublisherPool(pool *codec.BufferPool) PublisherOption {
	return func(p *Publisher) {
		p.pool = pool
	}
}

// NewPublisher creates a writer for one topic and one wire format. The format
// is fixed for the publisher's lifetime.
func NewPublisher(registry *Registry, topic string, format codec.Format, opts ...PublisherOption) (*Publisher, error) {
	if registry == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nil registry"), "Publisher", "NewPublisher", "construction")
	}
	if topic == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("empty topic"), "Publisher", "NewPublisher", "construction")
	}
	if !format.Valid() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: 0x%02x", errors.ErrUnknownFormat, byte(format)),
			"Publisher", "NewPublisher", "construction")
	}

	p := &Publisher{
		registry:     registry,
		topic:        topic,
		format:       format,
		pool:         registry.pool,
		blockTimeout: DefaultBlockTimeout,
		logger:       registry.logger.With("topic", topic, "format", format.String()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Topic returns the topic this publisher writes to
func (p *Publisher) Topic() string { return p.topic }

// Format returns the publisher's wire format
func (p *Publisher) Format() codec.Format { return p.format }

// Publish encodes the payload once and delivers it to every live subscriber
// queue for the topic. Each queue's overflow policy applies independently;
// per-queue overflow and closed queues are not publish failures. The only
// error a caller sees is a SerializationError from the encode step.
func (p *Publisher) Publish(payload codec.Payload) error {
	env, err := p.encode(payload)
	if err != nil {
		if p.registry.metrics != nil {
			p.registry.metrics.SerializationErrors.WithLabelValues(p.format.String(), "encode").Inc()
		}
		return err
	}

	p.messagesSent.Add(1)
	p.bytesSent.Add(uint64(env.size()))
	if p.registry.metrics != nil {
		p.registry.metrics.MessagesPublished.WithLabelValues(p.topic, p.format.String()).Inc()
		p.registry.metrics.BytesPublished.WithLabelValues(p.topic).Add(float64(env.size()))
	}

	// Snapshot under the read lock, push after releasing it. Zero
	// subscribers is a silent no-op.
	queues := p.registry.snapshot(p.topic)

	sawClosed := false
	for _, q := range queues {
		env.retain()
		if pushErr := q.push(env, p.blockTimeout); pushErr != nil {
			env.release()
			if pushErr == errors.ErrChannelClosed {
				sawClosed = true
			}
		}
	}

	// Drop the publisher's own reference; queues hold theirs.
	env.release()

	if sawClosed {
		p.registry.prune(p.topic)
	}
	return nil
}

// encode produces the envelope for this publisher's format, holding one
// reference for the caller.
func (p *Publisher) encode(payload codec.Payload) (envelope, error) {
	if p.format == codec.FormatArchive {
		ab, err := codec.NewArchive(payload, p.pool)
		if err != nil {
			return envelope{}, err
		}
		return envelope{format: p.format, archive: ab}, nil
	}

	buf, err := codec.Encode(payload, p.format, p.pool)
	if err != nil {
		return envelope{}, err
	}
	return envelope{format: p.format, buf: buf}, nil
}

// Stats returns the publisher's counters without blocking writers
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		MessagesSent: p.messagesSent.Load(),
		BytesSent:    p.bytesSent.Load(),
	}
}
