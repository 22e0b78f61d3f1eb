package bus

import (
	"github.com/ruvnet/agentic-robotics-sub000/codec"
)

// envelope is the unit a delivery queue holds: an already-encoded frame for
// Binary/Text, or a shared archive handle for the zero-copy path. Encoding
// completes before any push begins, so a queue can never observe a torn
// message.
type envelope struct {
	format  codec.Format
	buf     *codec.Buffer        // Binary and Text frames
	archive *codec.ArchiveBuffer // Archive handles
}

// size returns the encoded frame length in bytes
func (e envelope) size() int {
	if e.archive != nil {
		return e.archive.Len()
	}
	return e.buf.Len()
}

// retain adds one consumer reference for a queue about to hold the envelope
func (e envelope) retain() {
	if e.archive != nil {
		e.archive.Retain()
	} else {
		e.buf.Retain()
	}
}

// release drops one consumer reference
func (e envelope) release() {
	if e.archive != nil {
		e.archive.Release()
	} else {
		e.buf.Release()
	}
}

// decode materializes the payload. For the archive path this is a zero-copy
// read of the shared value; for wire formats it is a full decode. The caller
// still owns its reference and must release it afterwards.
func (e envelope) decode() (codec.Payload, error) {
	if e.archive != nil {
		return e.archive.Value()
	}
	return codec.Decode(e.buf.Bytes(), e.format)
}
