// Package natsbridge relays bus topics over NATS.
//
// Exported topics are tapped with an ordinary bus subscriber, re-encoded as
// stable binary frames, and published to one NATS subject per topic.
// Imported topics run the other way: a NATS subscription decodes incoming
// frames and republishes them on the local bus. The frame layout on the
// wire is exactly the binary codec frame, so any process speaking that
// layout can interoperate without knowing it is talking to this bridge.
package natsbridge

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ruvnet/agentic-robotics-sub000/bus"
	"github.com/ruvnet/agentic-robotics-sub000/codec"
	"github.com/ruvnet/agentic-robotics-sub000/errors"
	"github.com/ruvnet/agentic-robotics-sub000/pkg/retry"
	"github.com/ruvnet/agentic-robotics-sub000/transport"
)

// Defaults for bridge construction
const (
	DefaultSubjectPrefix = "ros3"
	DefaultQueueCapacity = 256
	DefaultReceivePoll   = 200 * time.Millisecond
)

// Bridge relays topics between a bus registry and a NATS server. It
// implements transport.Bridge.
type Bridge struct {
	registry *bus.Registry
	url      string
	prefix   string
	capacity int
	logger   *slog.Logger
	pool     *codec.BufferPool
	retryCfg retry.Config
	natsOpts []nats.Option

	exportTopics []string
	importTopics []string

	conn *nats.Conn

	mu      sync.Mutex
	exports map[string]*bus.Subscriber
	imports map[string]*importRelay

	started atomic.Bool
	stopped atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	exported      atomic.Uint64
	imported      atomic.Uint64
	bytesExported atomic.Uint64
	bytesImported atomic.Uint64
	relayErrors   atomic.Uint64
	reconnects    atomic.Uint64
}

type importRelay struct {
	sub *nats.Subscription
	pub *bus.Publisher
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithSubjectPrefix sets the NATS subject prefix topics are mapped under
func WithSubjectPrefix(prefix string) Option {
	return func(b *Bridge) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithQueueCapacity sets the tap queue capacity used for exported topics
func WithQueueCapacity(capacity int) Option {
	return func(b *Bridge) {
		if capacity > 0 {
			b.capacity = capacity
		}
	}
}

// WithRetry sets the backoff used for the initial connection
func WithRetry(cfg retry.Config) Option {
	return func(b *Bridge) {
		b.retryCfg = cfg
	}
}

// WithReconnect bounds the NATS client's own reconnection behavior
func WithReconnect(maxReconnects int, wait time.Duration) Option {
	return func(b *Bridge) {
		b.natsOpts = append(b.natsOpts,
			nats.MaxReconnects(maxReconnects),
			nats.ReconnectWait(wait))
	}
}

// WithExportTopics sets topics relayed outward when the bridge starts
func WithExportTopics(topics ...string) Option {
	return func(b *Bridge) {
		b.exportTopics = append(b.exportTopics, topics...)
	}
}

// WithImportTopics sets topics injected into the local bus when the bridge
// starts
func WithImportTopics(topics ...string) Option {
	return func(b *Bridge) {
		b.importTopics = append(b.importTopics, topics...)
	}
}

// WithBufferPool sets the pool used to re-encode exported payloads
func WithBufferPool(pool *codec.BufferPool) Option {
	return func(b *Bridge) {
		if pool != nil {
			b.pool = pool
		}
	}
}

// New creates a bridge against the given registry and NATS URL. Nothing
// connects until Start.
func New(registry *bus.Registry, url string, opts ...Option) (*Bridge, error) {
	if registry == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"natsbridge", "New", "registry is required")
	}
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"natsbridge", "New", "url is required")
	}

	b := &Bridge{
		registry: registry,
		url:      url,
		prefix:   DefaultSubjectPrefix,
		capacity: DefaultQueueCapacity,
		logger:   slog.Default(),
		pool:     codec.NewBufferPool(codec.DefaultPoolBuffers, codec.DefaultPoolBufferSize),
		retryCfg: retry.Persistent(),
		exports:  make(map[string]*bus.Subscriber),
		imports:  make(map[string]*importRelay),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	for _, topic := range b.importTopics {
		for _, exported := range b.exportTopics {
			if topic == exported {
				return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
					"natsbridge", "New", "topic "+topic+" cannot be both exported and imported")
			}
		}
	}
	return b, nil
}

// Start connects to NATS with backoff and wires the configured topics
func (b *Bridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "natsbridge", "Start", "connecting")
	}

	natsOpts := append([]nats.Option{
		nats.Name("ros3-bridge"),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.reconnects.Add(1)
			b.logger.Info("bridge reconnected", "url", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("bridge disconnected", "error", err)
			}
		}),
	}, b.natsOpts...)

	conn, err := retry.DoWithResult(ctx, b.retryCfg, func() (*nats.Conn, error) {
		return nats.Connect(b.url, natsOpts...)
	})
	if err != nil {
		b.started.Store(false)
		return errors.WrapTransient(err, "natsbridge", "Start", "connecting to "+b.url)
	}
	b.conn = conn
	b.logger.Info("bridge connected", "url", b.url, "prefix", b.prefix)

	for _, topic := range b.exportTopics {
		if err := b.ExportTopic(topic); err != nil {
			_ = b.Stop()
			return err
		}
	}
	for _, topic := range b.importTopics {
		if err := b.ImportTopic(topic); err != nil {
			_ = b.Stop()
			return err
		}
	}
	return nil
}

// ExportTopic taps the topic with a local subscriber and relays every
// message outward as a binary frame
func (b *Bridge) ExportTopic(topic string) error {
	if !b.started.Load() || b.conn == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "natsbridge", "ExportTopic", topic)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.exports[topic]; dup {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"natsbridge", "ExportTopic", "topic "+topic+" already exported")
	}
	if _, dup := b.imports[topic]; dup {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"natsbridge", "ExportTopic", "topic "+topic+" is imported; relaying it back out would loop")
	}

	sub, err := bus.NewSubscriber(b.registry, topic, b.capacity, bus.EvictOldest)
	if err != nil {
		return err
	}
	b.exports[topic] = sub

	subject := b.subjectFor(topic)
	b.wg.Add(1)
	go b.exportLoop(topic, subject, sub)

	b.logger.Info("exporting topic", "topic", topic, "subject", subject)
	return nil
}

func (b *Bridge) exportLoop(topic, subject string, sub *bus.Subscriber) {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		payload, err := sub.ReceiveWithTimeout(DefaultReceivePoll)
		if err != nil {
			if stderrors.Is(err, errors.ErrTimeout) {
				continue
			}
			if stderrors.Is(err, errors.ErrChannelClosed) {
				return
			}
			b.relayErrors.Add(1)
			b.logger.Warn("export receive failed", "topic", topic, "error", err)
			continue
		}

		buf, err := codec.Encode(payload, codec.FormatBinary, b.pool)
		if err != nil {
			b.relayErrors.Add(1)
			b.logger.Warn("export encode failed", "topic", topic, "error", err)
			continue
		}
		frame := buf.Bytes()
		if err := b.conn.Publish(subject, frame); err != nil {
			b.relayErrors.Add(1)
			b.logger.Warn("export publish failed", "topic", topic, "error", err)
		} else {
			b.exported.Add(1)
			b.bytesExported.Add(uint64(len(frame)))
		}
		buf.Release()
	}
}

// ImportTopic subscribes to the topic's subject and republishes every frame
// on the local bus
func (b *Bridge) ImportTopic(topic string) error {
	if !b.started.Load() || b.conn == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "natsbridge", "ImportTopic", topic)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.imports[topic]; dup {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"natsbridge", "ImportTopic", "topic "+topic+" already imported")
	}
	if _, dup := b.exports[topic]; dup {
		return errors.WrapInvalid(errors.ErrInvalidConfig,
			"natsbridge", "ImportTopic", "topic "+topic+" is exported; importing it would loop")
	}

	pub, err := bus.NewPublisher(b.registry, topic, codec.FormatBinary)
	if err != nil {
		return err
	}

	subject := b.subjectFor(topic)
	natsSub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		b.handleInbound(topic, pub, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "natsbridge", "ImportTopic", "subscribing to "+subject)
	}

	b.imports[topic] = &importRelay{sub: natsSub, pub: pub}
	b.logger.Info("importing topic", "topic", topic, "subject", subject)
	return nil
}

func (b *Bridge) handleInbound(topic string, pub *bus.Publisher, frame []byte) {
	payload, err := codec.Decode(frame, codec.FormatBinary)
	if err != nil {
		b.relayErrors.Add(1)
		b.logger.Warn("import decode failed", "topic", topic, "error", err)
		return
	}
	if err := pub.Publish(payload); err != nil {
		b.relayErrors.Add(1)
		b.logger.Warn("import publish failed", "topic", topic, "error", err)
		return
	}
	b.imported.Add(1)
	b.bytesImported.Add(uint64(len(frame)))
}

// Stop tears down the relays and drains the connection
func (b *Bridge) Stop() error {
	if !b.started.Load() {
		return errors.WrapInvalid(errors.ErrNotStarted, "natsbridge", "Stop", "disconnecting")
	}
	if !b.stopped.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "natsbridge", "Stop", "disconnecting")
	}

	close(b.stopCh)

	b.mu.Lock()
	for topic, sub := range b.exports {
		if err := sub.Close(); err != nil {
			b.logger.Warn("closing export tap failed", "topic", topic, "error", err)
		}
	}
	for topic, relay := range b.imports {
		if err := relay.sub.Unsubscribe(); err != nil {
			b.logger.Warn("unsubscribing import failed", "topic", topic, "error", err)
		}
	}
	b.mu.Unlock()

	b.wg.Wait()

	if b.conn != nil {
		if err := b.conn.Drain(); err != nil {
			b.conn.Close()
		}
	}
	b.logger.Info("bridge stopped")
	return nil
}

// Stats reports relay activity counters
func (b *Bridge) Stats() transport.Stats {
	return transport.Stats{
		MessagesExported: b.exported.Load(),
		MessagesImported: b.imported.Load(),
		BytesExported:    b.bytesExported.Load(),
		BytesImported:    b.bytesImported.Load(),
		RelayErrors:      b.relayErrors.Load(),
		Reconnects:       b.reconnects.Load(),
	}
}

// subjectFor maps a bus topic to a NATS subject under the bridge prefix:
// "/cmd/vel" becomes "<prefix>.cmd.vel".
func (b *Bridge) subjectFor(topic string) string {
	trimmed := strings.Trim(topic, "/")
	return b.prefix + "." + strings.ReplaceAll(trimmed, "/", ".")
}

var _ transport.Bridge = (*Bridge)(nil)
