package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruvnet/agentic-robotics-sub000/codec"
	"github.com/ruvnet/agentic-robotics-sub000/errors"
	"github.com/ruvnet/agentic-robotics-sub000/message"
)

func testEnvelope(t *testing.T, ts int64) envelope {
	t.Helper()
	buf, err := codec.Encode(&message.RobotState{Timestamp: ts}, codec.FormatBinary, nil)
	require.NoError(t, err)
	return envelope{format: codec.FormatBinary, buf: buf}
}

func TestQueue_FIFO(t *testing.T) {
	q := newDeliveryQueue(4, Reject)

	for i := int64(0); i < 4; i++ {
		require.NoError(t, q.push(testEnvelope(t, i), 0))
	}

	for i := int64(0); i < 4; i++ {
		env, ok, err := q.tryPop()
		require.NoError(t, err)
		require.True(t, ok)
		p, err := env.decode()
		require.NoError(t, err)
		assert.Equal(t, i, p.(*message.RobotState).Timestamp)
		env.release()
	}

	_, ok, err := q.tryPop()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueue_RejectPolicy(t *testing.T) {
	q := newDeliveryQueue(1, Reject)

	require.NoError(t, q.push(testEnvelope(t, 0), 0))

	overflow := testEnvelope(t, 1)
	err := q.push(overflow, 0)
	require.ErrorIs(t, err, errors.ErrQueueFull)
	overflow.release()

	assert.Equal(t, uint64(1), q.dropped.Load())
	assert.Equal(t, 1, q.pending())
}

func TestQueue_EvictOldestPolicy(t *testing.T) {
	q := newDeliveryQueue(2, EvictOldest)

	for i := int64(0); i < 5; i++ {
		require.NoError(t, q.push(testEnvelope(t, i), 0))
	}

	assert.Equal(t, uint64(3), q.dropped.Load())

	env, ok, err := q.tryPop()
	require.NoError(t, err)
	require.True(t, ok)
	p, err := env.decode()
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.(*message.RobotState).Timestamp, "oldest survivors remain")
	env.release()
}

func TestQueue_BlockPolicyTimesOut(t *testing.T) {
	q := newDeliveryQueue(1, Block)
	require.NoError(t, q.push(testEnvelope(t, 0), 0))

	overflow := testEnvelope(t, 1)
	start := time.Now()
	err := q.push(overflow, 20*time.Millisecond)
	elapsed := time.Since(start)
	overflow.release()

	require.ErrorIs(t, err, errors.ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestQueue_BlockPolicyUnblocksOnPop(t *testing.T) {
	q := newDeliveryQueue(1, Block)
	require.NoError(t, q.push(testEnvelope(t, 0), 0))

	var wg sync.WaitGroup
	wg.Add(1)
	var pushErr error
	go func() {
		defer wg.Done()
		pushErr = q.push(testEnvelope(t, 1), time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	env, ok, err := q.tryPop()
	require.NoError(t, err)
	require.True(t, ok)
	env.release()

	wg.Wait()
	require.NoError(t, pushErr)
	assert.Equal(t, 1, q.pending())
}

func TestQueue_PopWaitDeliversConcurrentPush(t *testing.T) {
	q := newDeliveryQueue(2, Reject)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.push(testEnvelope(t, 7), 0)
	}()

	env, err := q.popWait(time.Second)
	require.NoError(t, err)
	p, err := env.decode()
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.(*message.RobotState).Timestamp)
	env.release()
}

func TestQueue_PopWaitTimeout(t *testing.T) {
	q := newDeliveryQueue(2, Reject)

	_, err := q.popWait(20 * time.Millisecond)
	require.ErrorIs(t, err, errors.ErrTimeout)
}

func TestQueue_CloseReleasesBacklog(t *testing.T) {
	pool := codec.NewBufferPool(8, 256)
	q := newDeliveryQueue(4, Reject)

	for i := int64(0); i < 3; i++ {
		buf, err := codec.Encode(&message.RobotState{Timestamp: i}, codec.FormatBinary, pool)
		require.NoError(t, err)
		require.NoError(t, q.push(envelope{format: codec.FormatBinary, buf: buf}, 0))
	}

	q.close()
	q.close() // idempotent

	_, _, err := q.tryPop()
	assert.ErrorIs(t, err, errors.ErrChannelClosed)

	err = q.push(testEnvelope(t, 9), 0)
	assert.ErrorIs(t, err, errors.ErrChannelClosed)

	// All three buffered frames must have gone back to the pool.
	assert.Equal(t, uint64(3), pool.Stats().Puts)
}

func TestQueue_CloseWakesBlockedReceiver(t *testing.T) {
	q := newDeliveryQueue(2, Reject)

	done := make(chan error, 1)
	go func() {
		_, err := q.popWait(5 * time.Second)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	q.close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errors.ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by close")
	}
}
