package codec

import (
	"sync/atomic"

	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

// ArchiveBuffer is the zero-copy representation: one encode whose buffer is
// also the readable value. Subscribers in the same address space read the
// payload through Value without a decode pass. The handle is refcounted; each
// subscriber queue retains it on push and releases it after consumption, and
// reads after the final release fail with ErrBufferReleased rather than
// observing freed memory.
type ArchiveBuffer struct {
	payload Payload
	buf     *Buffer
	size    int
	refs    atomic.Int32
}

// NewArchive encodes the payload once and returns a live handle holding one
// reference. The encoded bytes use the stable binary layout with the Archive
// format byte, so a handle can still be flattened for an out-of-process hop.
func NewArchive(p Payload, pool *BufferPool) (*ArchiveBuffer, error) {
	buf, err := Encode(p, FormatArchive, pool)
	if err != nil {
		return nil, err
	}
	ab := &ArchiveBuffer{payload: p, buf: buf, size: buf.Len()}
	ab.refs.Store(1)
	return ab, nil
}

// Value returns the in-place readable payload. The value is immutable and
// only valid while the caller holds a reference.
func (a *ArchiveBuffer) Value() (Payload, error) {
	if a.refs.Load() <= 0 {
		return nil, errors.WrapInvalid(errors.ErrBufferReleased, "ArchiveBuffer", "Value", "read")
	}
	return a.payload, nil
}

// Bytes returns the encoded frame backing this handle
func (a *ArchiveBuffer) Bytes() ([]byte, error) {
	if a.refs.Load() <= 0 {
		return nil, errors.WrapInvalid(errors.ErrBufferReleased, "ArchiveBuffer", "Bytes", "read")
	}
	return a.buf.Bytes(), nil
}

// Len returns the encoded frame length; it stays readable after release so
// stats accounting never races the last consumer.
func (a *ArchiveBuffer) Len() int { return a.size }

// Retain adds a reference. Only a holder of a live reference may call it.
func (a *ArchiveBuffer) Retain() {
	a.refs.Add(1)
}

// Release drops a reference; the final release recycles the encode buffer and
// invalidates the handle.
func (a *ArchiveBuffer) Release() {
	if a.refs.Add(-1) == 0 {
		a.buf.Release()
	}
}
