package codec

import (
	"sync/atomic"
)

// BufferPool is a capped freelist of reusable encode buffers. Entries are
// cleared (length reset), not freed, on release; the count cap bounds the
// memory held by idle buffers. A nil *BufferPool is valid and falls back to
// plain allocation.
type BufferPool struct {
	free    chan []byte
	bufSize int

	// Statistics (atomic, always tracked)
	gets     atomic.Uint64
	puts     atomic.Uint64
	misses   atomic.Uint64
	discards atomic.Uint64
}

// DefaultPoolBuffers and DefaultPoolBufferSize size the pool used when a
// publisher is constructed without an explicit one.
const (
	DefaultPoolBuffers    = 32
	DefaultPoolBufferSize = 4096
)

// NewBufferPool creates a pool holding at most count buffers of cap size
func NewBufferPool(count, size int) *BufferPool {
	if count <= 0 {
		count = DefaultPoolBuffers
	}
	if size <= 0 {
		size = DefaultPoolBufferSize
	}
	return &BufferPool{
		free:    make(chan []byte, count),
		bufSize: size,
	}
}

// Get returns a zero-length buffer, reusing a pooled one when available
func (p *BufferPool) Get() []byte {
	if p == nil {
		return nil
	}
	p.gets.Add(1)
	select {
	case b := <-p.free:
		return b[:0]
	default:
		p.misses.Add(1)
		return make([]byte, 0, p.bufSize)
	}
}

// put returns a buffer to the freelist, discarding it if the pool is full or
// the buffer has grown far past the pool's size class.
func (p *BufferPool) put(b []byte) {
	if p == nil || b == nil {
		return
	}
	if cap(b) > 4*p.bufSize {
		p.discards.Add(1)
		return
	}
	select {
	case p.free <- b[:0]:
		p.puts.Add(1)
	default:
		p.discards.Add(1)
	}
}

// PoolStats is a point-in-time snapshot of pool activity
type PoolStats struct {
	Gets     uint64
	Puts     uint64
	Misses   uint64
	Discards uint64
	Idle     int
}

// Stats returns a snapshot of the pool's counters
func (p *BufferPool) Stats() PoolStats {
	if p == nil {
		return PoolStats{}
	}
	return PoolStats{
		Gets:     p.gets.Load(),
		Puts:     p.puts.Load(),
		Misses:   p.misses.Load(),
		Discards: p.discards.Load(),
		Idle:     len(p.free),
	}
}

// Buffer is a refcounted encoded frame. One encode feeds every subscriber
// queue on a topic; each queue retains the buffer on push and releases it
// after the consumer (or an eviction) is done with it. The final release
// returns the underlying bytes to the pool, so the contents must be treated
// as immutable while any reference is live.
type Buffer struct {
	data []byte
	pool *BufferPool
	refs atomic.Int32
}

func newBuffer(data []byte, pool *BufferPool) *Buffer {
	b := &Buffer{data: data, pool: pool}
	b.refs.Store(1)
	return b
}

// Bytes returns the frame contents. Callers must not mutate or hold the slice
// past their reference.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the frame length in bytes
func (b *Buffer) Len() int { return len(b.data) }

// Retain adds a reference
func (b *Buffer) Retain() {
	b.refs.Add(1)
}

// Release drops a reference; the last release recycles the buffer
func (b *Buffer) Release() {
	if b.refs.Add(-1) == 0 {
		data := b.data
		b.data = nil
		b.pool.put(data)
	}
}
