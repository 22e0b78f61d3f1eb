package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

func TestEncoderDecoder_Primitives(t *testing.T) {
	enc := NewEncoder(nil)
	enc.WriteFloat64(3.5)
	enc.WriteInt64(-42)
	enc.WriteUint64(42)
	enc.WriteBool(true)
	enc.WriteUint8(7)
	enc.WriteString("odom")
	enc.WriteBytes([]byte{0xde, 0xad})
	enc.WriteFloat64Slice([]float64{1, 2, 3})

	dec := NewDecoder(enc.Bytes())

	f, err := dec.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 3.5, f)

	i, err := dec.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-42), i)

	u, err := dec.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), u)

	b, err := dec.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	u8, err := dec.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	s, err := dec.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "odom", s)

	bs, err := dec.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, bs)

	fs, err := dec.ReadFloat64Slice()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, fs)

	assert.Equal(t, 0, dec.Remaining())
}

func TestEncoder_SizeHelpersMatchEncodedBytes(t *testing.T) {
	enc := NewEncoder(nil)

	enc.WriteFloat64(1.0)
	assert.Equal(t, SizeFloat64, enc.Len())

	enc.WriteString("abc")
	assert.Equal(t, SizeFloat64+SizeString("abc"), enc.Len())

	enc.WriteFloat64Slice([]float64{1, 2, 3, 4})
	assert.Equal(t, SizeFloat64+SizeString("abc")+SizeFloat64Slice(4), enc.Len())
}

func TestDecoder_TagMismatch(t *testing.T) {
	enc := NewEncoder(nil)
	enc.WriteInt64(5)

	dec := NewDecoder(enc.Bytes())
	_, err := dec.ReadFloat64()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestDecoder_Truncation(t *testing.T) {
	enc := NewEncoder(nil)
	enc.WriteString("hello")
	full := enc.Bytes()

	// Every strict prefix of an encoded field must fail cleanly, never panic
	for cut := 0; cut < len(full); cut++ {
		dec := NewDecoder(full[:cut])
		_, err := dec.ReadString()
		require.Error(t, err, "prefix length %d", cut)
	}
}

func TestDecoder_TruncatedFloat64Slice(t *testing.T) {
	enc := NewEncoder(nil)
	enc.WriteFloat64Slice([]float64{1, 2, 3})
	full := enc.Bytes()

	dec := NewDecoder(full[:len(full)-4])
	_, err := dec.ReadFloat64Slice()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTruncatedPayload)
}

func TestBufferPool_ReuseAndStats(t *testing.T) {
	pool := NewBufferPool(2, 64)

	b1 := pool.Get()
	assert.Equal(t, 0, len(b1))
	assert.Equal(t, 64, cap(b1))

	b1 = append(b1, 1, 2, 3)
	pool.put(b1)

	b2 := pool.Get()
	assert.Equal(t, 0, len(b2), "pooled buffer must come back cleared")

	stats := pool.Stats()
	assert.Equal(t, uint64(2), stats.Gets)
	assert.Equal(t, uint64(1), stats.Puts)
	assert.Equal(t, uint64(1), stats.Misses, "first Get has an empty freelist")
}

func TestBufferPool_CapBoundsIdleBuffers(t *testing.T) {
	pool := NewBufferPool(1, 64)

	pool.put(make([]byte, 0, 64))
	pool.put(make([]byte, 0, 64)) // freelist full, discarded

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Puts)
	assert.Equal(t, uint64(1), stats.Discards)
	assert.Equal(t, 1, stats.Idle)
}

func TestBufferPool_DiscardsOvergrownBuffers(t *testing.T) {
	pool := NewBufferPool(4, 64)

	pool.put(make([]byte, 0, 64*8))
	assert.Equal(t, uint64(1), pool.Stats().Discards)
}

func TestBufferPool_NilSafe(t *testing.T) {
	var pool *BufferPool

	b := pool.Get()
	assert.Nil(t, b)
	pool.put(b)
	assert.Equal(t, PoolStats{}, pool.Stats())
}

func TestBuffer_RefcountReturnsToPool(t *testing.T) {
	pool := NewBufferPool(4, 64)

	buf := newBuffer(append(pool.Get(), 1, 2, 3), pool)
	buf.Retain()

	buf.Release()
	assert.NotNil(t, buf.Bytes(), "still one reference outstanding")

	buf.Release()
	assert.Nil(t, buf.Bytes())
	assert.Equal(t, 1, pool.Stats().Idle)
}
