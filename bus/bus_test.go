package bus_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruvnet/agentic-robotics-sub000/bus"
	"github.com/ruvnet/agentic-robotics-sub000/codec"
	"github.com/ruvnet/agentic-robotics-sub000/errors"
	"github.com/ruvnet/agentic-robotics-sub000/message"
	"github.com/ruvnet/agentic-robotics-sub000/metric"
)

func state(ts int64) *message.RobotState {
	return &message.RobotState{
		Position:  [3]float64{1, 2, 3},
		Velocity:  [3]float64{0.1, 0.2, 0.3},
		Timestamp: ts,
	}
}

func timestampOf(t *testing.T, p codec.Payload) int64 {
	t.Helper()
	rs, ok := p.(*message.RobotState)
	require.True(t, ok)
	return rs.Timestamp
}

func TestPublishDelivery(t *testing.T) {
	reg := bus.NewRegistry()

	sub, err := bus.NewSubscriber(reg, "/odom", 8, bus.Reject)
	require.NoError(t, err)
	defer sub.Close()

	pub, err := bus.NewPublisher(reg, "/odom", codec.FormatBinary)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(state(1)))

	got, ok, err := sub.TryReceive()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), timestampOf(t, got))
}

func TestPublish_ZeroSubscribersIsSilentNoOp(t *testing.T) {
	reg := bus.NewRegistry()

	pub, err := bus.NewPublisher(reg, "/nowhere", codec.FormatBinary)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(state(1)))
	assert.Equal(t, uint64(1), pub.Stats().MessagesSent)
}

func TestPerPairOrdering(t *testing.T) {
	reg := bus.NewRegistry()

	sub, err := bus.NewSubscriber(reg, "/cmd", 128, bus.Reject)
	require.NoError(t, err)
	defer sub.Close()

	pub, err := bus.NewPublisher(reg, "/cmd", codec.FormatBinary)
	require.NoError(t, err)

	const n = 100
	for i := int64(0); i < n; i++ {
		require.NoError(t, pub.Publish(state(i)))
	}

	for i := int64(0); i < n; i++ {
		got, ok, err := sub.TryReceive()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, timestampOf(t, got), "FIFO per publisher-subscriber pair")
	}
}

func TestFanoutToAllSubscribers(t *testing.T) {
	reg := bus.NewRegistry()

	subs := make([]*bus.Subscriber, 3)
	for i := range subs {
		s, err := bus.NewSubscriber(reg, "/scan", 4, bus.Reject)
		require.NoError(t, err)
		defer s.Close()
		subs[i] = s
	}

	pub, err := bus.NewPublisher(reg, "/scan", codec.FormatBinary)
	require.NoError(t, err)
	require.NoError(t, pub.Publish(state(5)))

	for i, s := range subs {
		got, ok, err := s.TryReceive()
		require.NoError(t, err, "subscriber %d", i)
		require.True(t, ok, "subscriber %d", i)
		assert.Equal(t, int64(5), timestampOf(t, got))
	}
}

// The worked example from the delivery contract: two capacity-4 EvictOldest
// subscribers, six messages published with no draining, each queue ends up
// holding {2,3,4,5} and bytes_sent equals the sum of all six encoded sizes.
func TestEvictOldestScenario(t *testing.T) {
	reg := bus.NewRegistry()

	s1, err := bus.NewSubscriber(reg, "/cmd", 4, bus.EvictOldest)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := bus.NewSubscriber(reg, "/cmd", 4, bus.EvictOldest)
	require.NoError(t, err)
	defer s2.Close()

	pub, err := bus.NewPublisher(reg, "/cmd", codec.FormatBinary)
	require.NoError(t, err)

	var wantBytes uint64
	for i := int64(0); i < 6; i++ {
		m := state(i)
		wantBytes += uint64(codec.BinaryFrameSize(m))
		require.NoError(t, pub.Publish(m))
	}

	stats := pub.Stats()
	assert.Equal(t, uint64(6), stats.MessagesSent)
	assert.Equal(t, wantBytes, stats.BytesSent)

	for _, s := range []*bus.Subscriber{s1, s2} {
		for want := int64(2); want <= 5; want++ {
			got, ok, err := s.TryReceive()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want, timestampOf(t, got))
		}
		_, ok, err := s.TryReceive()
		require.NoError(t, err)
		assert.False(t, ok, "queue fully drained")
		assert.Equal(t, uint64(2), s.Stats().Dropped)
	}
}

// A subscriber whose Block-policy queue is full must not prevent delivery to
// a concurrently registered subscriber on the same topic.
func TestBackpressureIsolation(t *testing.T) {
	reg := bus.NewRegistry()

	slow, err := bus.NewSubscriber(reg, "/cmd", 1, bus.Block)
	require.NoError(t, err)
	defer slow.Close()

	fast, err := bus.NewSubscriber(reg, "/cmd", 8, bus.Reject)
	require.NoError(t, err)
	defer fast.Close()

	pub, err := bus.NewPublisher(reg, "/cmd", codec.FormatBinary,
		bus.WithBlockTimeout(20*time.Millisecond))
	require.NoError(t, err)

	// First publish fills slow's queue; the next two wait out slow's block
	// timeout but must still land in fast's queue.
	for i := int64(0); i < 3; i++ {
		require.NoError(t, pub.Publish(state(i)))
	}

	for i := int64(0); i < 3; i++ {
		got, ok, err := fast.TryReceive()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, timestampOf(t, got))
	}

	got, ok, err := slow.TryReceive()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), timestampOf(t, got), "slow kept only the first message")
}

func TestReceiveWithTimeout(t *testing.T) {
	reg := bus.NewRegistry()

	sub, err := bus.NewSubscriber(reg, "/odom", 4, bus.Reject)
	require.NoError(t, err)
	defer sub.Close()

	_, err = sub.ReceiveWithTimeout(20 * time.Millisecond)
	require.ErrorIs(t, err, errors.ErrTimeout)

	pub, err := bus.NewPublisher(reg, "/odom", codec.FormatBinary)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = pub.Publish(state(3))
	}()

	got, err := sub.ReceiveWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(3), timestampOf(t, got))
}

func TestSubscriberClose(t *testing.T) {
	reg := bus.NewRegistry()

	sub, err := bus.NewSubscriber(reg, "/cmd", 4, bus.Reject)
	require.NoError(t, err)

	pub, err := bus.NewPublisher(reg, "/cmd", codec.FormatBinary)
	require.NoError(t, err)
	require.NoError(t, pub.Publish(state(1)))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close(), "close is idempotent")

	_, _, err = sub.TryReceive()
	assert.ErrorIs(t, err, errors.ErrChannelClosed)

	// Publishing to the now-empty topic is a no-op and prunes the dead queue
	require.NoError(t, pub.Publish(state(2)))
	assert.Equal(t, 0, reg.SubscriberCount("/cmd"))
}

func TestTopicLifecycle(t *testing.T) {
	reg := bus.NewRegistry()
	assert.Empty(t, reg.Topics())

	s1, err := bus.NewSubscriber(reg, "/a", 1, bus.Reject)
	require.NoError(t, err)
	s2, err := bus.NewSubscriber(reg, "/b", 1, bus.Reject)
	require.NoError(t, err)

	assert.Equal(t, []string{"/a", "/b"}, reg.Topics())
	assert.Equal(t, 1, reg.SubscriberCount("/a"))

	require.NoError(t, s1.Close())
	assert.Equal(t, []string{"/b"}, reg.Topics(), "topic removed with its last subscriber")
	require.NoError(t, s2.Close())
	assert.Empty(t, reg.Topics())
}

func TestNewSubscriber_InvalidCapacity(t *testing.T) {
	reg := bus.NewRegistry()

	_, err := bus.NewSubscriber(reg, "/x", 0, bus.Reject)
	require.ErrorIs(t, err, errors.ErrInvalidCapacity)
}

func TestNewPublisher_InvalidFormat(t *testing.T) {
	reg := bus.NewRegistry()

	_, err := bus.NewPublisher(reg, "/x", codec.Format(0x7f))
	require.ErrorIs(t, err, errors.ErrUnknownFormat)
}

func TestArchiveDeliveryIsZeroCopy(t *testing.T) {
	reg := bus.NewRegistry()

	s1, err := bus.NewSubscriber(reg, "/state", 4, bus.Reject)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := bus.NewSubscriber(reg, "/state", 4, bus.Reject)
	require.NoError(t, err)
	defer s2.Close()

	pub, err := bus.NewPublisher(reg, "/state", codec.FormatArchive)
	require.NoError(t, err)

	original := state(9)
	require.NoError(t, pub.Publish(original))

	for _, s := range []*bus.Subscriber{s1, s2} {
		got, ok, err := s.TryReceive()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, original, got, "archive consumers share the published value")
	}
}

func TestTextFormatDelivery(t *testing.T) {
	reg := bus.NewRegistry()

	sub, err := bus.NewSubscriber(reg, "/rosout", 4, bus.Reject)
	require.NoError(t, err)
	defer sub.Close()

	pub, err := bus.NewPublisher(reg, "/rosout", codec.FormatText)
	require.NoError(t, err)

	entry := &message.LogEntry{Level: message.LevelInfo, Source: "nav", Text: "arrived", Timestamp: 4}
	require.NoError(t, pub.Publish(entry))

	got, ok, err := sub.TryReceive()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

// Under N concurrent publishers sending K messages each, the per-publisher
// atomic counters must sum to exactly N*K.
func TestStatsExactUnderConcurrency(t *testing.T) {
	const publishers = 8
	const perPublisher = 250

	reg := bus.NewRegistry()

	sub, err := bus.NewSubscriber(reg, "/stress", publishers*perPublisher, bus.Reject)
	require.NoError(t, err)
	defer sub.Close()

	pubs := make([]*bus.Publisher, publishers)
	for i := range pubs {
		p, err := bus.NewPublisher(reg, "/stress", codec.FormatBinary)
		require.NoError(t, err)
		pubs[i] = p
	}

	var wg sync.WaitGroup
	for _, p := range pubs {
		wg.Add(1)
		go func(p *bus.Publisher) {
			defer wg.Done()
			for i := int64(0); i < perPublisher; i++ {
				_ = p.Publish(state(i))
			}
		}(p)
	}
	wg.Wait()

	var total uint64
	for _, p := range pubs {
		total += p.Stats().MessagesSent
	}
	assert.Equal(t, uint64(publishers*perPublisher), total)
	assert.Equal(t, publishers*perPublisher, sub.Pending())

	// Drain and confirm the receive side agrees
	for {
		_, ok, err := sub.TryReceive()
		require.NoError(t, err)
		if !ok {
			break
		}
	}
	assert.Equal(t, uint64(publishers*perPublisher), sub.Stats().MessagesReceived)
}

// Concurrent per-pair ordering: two publishers interleave freely, but each
// publisher's own sequence arrives in order.
func TestPerPairOrderingUnderConcurrency(t *testing.T) {
	reg := bus.NewRegistry()

	sub, err := bus.NewSubscriber(reg, "/mix", 4096, bus.Reject)
	require.NoError(t, err)
	defer sub.Close()

	const perPublisher = 500
	makePublisher := func(base int64) func() {
		p, err := bus.NewPublisher(reg, "/mix", codec.FormatBinary)
		require.NoError(t, err)
		return func() {
			for i := int64(0); i < perPublisher; i++ {
				_ = p.Publish(state(base + i))
			}
		}
	}

	var wg sync.WaitGroup
	for _, run := range []func(){makePublisher(0), makePublisher(1_000_000)} {
		wg.Add(1)
		go func(run func()) {
			defer wg.Done()
			run()
		}(run)
	}
	wg.Wait()

	lastA, lastB := int64(-1), int64(1_000_000-1)
	for {
		got, ok, err := sub.TryReceive()
		require.NoError(t, err)
		if !ok {
			break
		}
		ts := timestampOf(t, got)
		if ts < 1_000_000 {
			assert.Greater(t, ts, lastA)
			lastA = ts
		} else {
			assert.Greater(t, ts, lastB)
			lastB = ts
		}
	}
	assert.Equal(t, int64(perPublisher-1), lastA)
	assert.Equal(t, int64(1_000_000+perPublisher-1), lastB)
}

func TestBusWithMetrics(t *testing.T) {
	mreg := metric.NewMetricsRegistry()
	reg := bus.NewRegistry(bus.WithMetrics(mreg))

	sub, err := bus.NewSubscriber(reg, "/cmd", 1, bus.EvictOldest)
	require.NoError(t, err)
	defer sub.Close()

	pub, err := bus.NewPublisher(reg, "/cmd", codec.FormatBinary)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(state(0)))
	require.NoError(t, pub.Publish(state(1))) // evicts 0

	_, ok, err := sub.TryReceive()
	require.NoError(t, err)
	require.True(t, ok)

	families, err := mreg.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	assert.True(t, found["ros3_bus_messages_published_total"])
	assert.True(t, found["ros3_bus_messages_dropped_total"])
	assert.True(t, found["ros3_bus_messages_delivered_total"])
}
