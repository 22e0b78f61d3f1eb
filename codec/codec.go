// Package codec implements the wire serialization engine: a fixed tag-length
// binary layout, a self-describing JSON text format, and an in-process
// zero-copy archive representation, backed by a capped pool of reusable
// encode buffers.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

type textEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// appendHeader writes the fixed frame header with a zero length placeholder
func (e *Encoder) appendHeader(format Format) {
	e.buf = append(e.buf, headerMagic0, headerMagic1, byte(format), 0, 0, 0, 0)
}

// patchLength backfills the payload length once the frame is complete
func (e *Encoder) patchLength() {
	binary.LittleEndian.PutUint32(e.buf[3:HeaderSize], uint32(len(e.buf)-HeaderSize))
}

// Encode serializes a payload into a framed, refcounted buffer. The caller
// owns one reference and must Release it. A nil pool falls back to plain
// allocation.
func Encode(p Payload, format Format, pool *BufferPool) (*Buffer, error) {
	if p == nil {
		return nil, encodeErr(format, fmt.Errorf("nil payload"))
	}

	switch format {
	case FormatBinary, FormatArchive:
		return encodeBinary(p, format, pool)
	case FormatText:
		return encodeText(p, pool)
	default:
		return nil, encodeErr(format, errors.ErrUnknownFormat)
	}
}

func encodeBinary(p Payload, format Format, pool *BufferPool) (*Buffer, error) {
	enc := NewEncoder(pool.Get())
	enc.appendHeader(format)
	enc.WriteString(p.TypeName())

	if err := p.MarshalWire(enc); err != nil {
		pool.put(enc.Bytes())
		return nil, encodeErr(format, err)
	}

	enc.patchLength()
	return newBuffer(enc.Bytes(), pool), nil
}

func encodeText(p Payload, pool *BufferPool) (*Buffer, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, encodeErr(FormatText, err)
	}
	env, err := json.Marshal(textEnvelope{Type: p.TypeName(), Data: body})
	if err != nil {
		return nil, encodeErr(FormatText, err)
	}

	enc := NewEncoder(pool.Get())
	enc.appendHeader(FormatText)
	enc.buf = append(enc.buf, env...)
	enc.patchLength()
	return newBuffer(enc.Bytes(), pool), nil
}

// Decode deserializes a framed buffer produced by Encode. The frame's format
// byte must match the requested format.
func Decode(frame []byte, format Format) (Payload, error) {
	payload, err := checkFrame(frame, format)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatBinary, FormatArchive:
		return decodeBinary(payload, format)
	case FormatText:
		return decodeText(payload)
	default:
		return nil, decodeErr(format, errors.ErrUnknownFormat)
	}
}

// checkFrame validates the header and returns the payload portion
func checkFrame(frame []byte, format Format) ([]byte, error) {
	if len(frame) < HeaderSize {
		return nil, decodeErr(format, errors.ErrTruncatedPayload)
	}
	if frame[0] != headerMagic0 || frame[1] != headerMagic1 {
		return nil, decodeErr(format, fmt.Errorf("bad frame magic 0x%02x%02x", frame[0], frame[1]))
	}
	if frame[2] != byte(format) {
		return nil, decodeErr(format,
			fmt.Errorf("frame format %s does not match requested %s", Format(frame[2]), format))
	}
	n := int(binary.LittleEndian.Uint32(frame[3:HeaderSize]))
	if n != len(frame)-HeaderSize {
		return nil, decodeErr(format,
			fmt.Errorf("%w: header says %d payload bytes, frame has %d",
				errors.ErrTruncatedPayload, n, len(frame)-HeaderSize))
	}
	return frame[HeaderSize:], nil
}

func decodeBinary(payload []byte, format Format) (Payload, error) {
	dec := NewDecoder(payload)

	name, err := dec.ReadString()
	if err != nil {
		return nil, decodeErr(format, err)
	}
	p, err := NewPayload(name)
	if err != nil {
		return nil, decodeErr(format, err)
	}
	if err := p.UnmarshalWire(dec); err != nil {
		return nil, decodeErr(format, err)
	}
	if dec.Remaining() != 0 {
		return nil, decodeErr(format, fmt.Errorf("%d trailing bytes after payload", dec.Remaining()))
	}
	return p, nil
}

func decodeText(payload []byte) (Payload, error) {
	var env textEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, decodeErr(FormatText, err)
	}
	p, err := NewPayload(env.Type)
	if err != nil {
		return nil, decodeErr(FormatText, err)
	}
	if err := json.Unmarshal(env.Data, p); err != nil {
		return nil, decodeErr(FormatText, err)
	}
	return p, nil
}

// BinaryFrameSize returns the exact framed size of a payload in the Binary
// (and Archive) layout without encoding it.
func BinaryFrameSize(p Payload) int {
	return HeaderSize + SizeString(p.TypeName()) + p.WireSize()
}
