package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

// Field tags for the binary tag-length layout. Stable wire values.
const (
	tagFloat64      byte = 0x01
	tagInt64        byte = 0x02
	tagUint64       byte = 0x03
	tagBool         byte = 0x04
	tagString       byte = 0x05
	tagBytes        byte = 0x06
	tagFloat64Slice byte = 0x07
	tagUint8        byte = 0x08
)

// Per-field wire sizes for fixed-width fields, including the tag byte.
// Used by payload WireSize implementations to keep encoded sizes
// deterministic without encoding.
const (
	SizeFloat64 = 1 + 8
	SizeInt64   = 1 + 8
	SizeUint64  = 1 + 8
	SizeBool    = 1 + 1
	SizeUint8   = 1 + 1
)

// SizeString returns the encoded size of a string field
func SizeString(s string) int { return 1 + 4 + len(s) }

// SizeBytes returns the encoded size of a byte-slice field
func SizeBytes(b []byte) int { return 1 + 4 + len(b) }

// SizeFloat64Slice returns the encoded size of a float64-slice field
func SizeFloat64Slice(n int) int { return 1 + 4 + 8*n }

// Encoder appends tag-length fields to a byte buffer. The zero value is not
// usable; obtain one from NewEncoder so pooled buffers flow through it.
type Encoder struct {
	buf []byte
}

// NewEncoder wraps a (possibly pooled, zero-length) byte slice
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf[:0]}
}

// Bytes returns the encoded buffer
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of encoded bytes so far
func (e *Encoder) Len() int { return len(e.buf) }

// WriteFloat64 appends a float64 field
func (e *Encoder) WriteFloat64(v float64) {
	e.buf = append(e.buf, tagFloat64)
	e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
}

// WriteInt64 appends an int64 field
func (e *Encoder) WriteInt64(v int64) {
	e.buf = append(e.buf, tagInt64)
	e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(v))
}

// WriteUint64 appends a uint64 field
func (e *Encoder) WriteUint64(v uint64) {
	e.buf = append(e.buf, tagUint64)
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// WriteBool appends a bool field
func (e *Encoder) WriteBool(v bool) {
	e.buf = append(e.buf, tagBool)
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

// WriteUint8 appends a uint8 field
func (e *Encoder) WriteUint8(v uint8) {
	e.buf = append(e.buf, tagUint8, v)
}

// WriteString appends a length-prefixed string field
func (e *Encoder) WriteString(s string) {
	e.buf = append(e.buf, tagString)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteBytes appends a length-prefixed byte-slice field
func (e *Encoder) WriteBytes(b []byte) {
	e.buf = append(e.buf, tagBytes)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteFloat64Slice appends a count-prefixed slice of float64 values
func (e *Encoder) WriteFloat64Slice(vs []float64) {
	e.buf = append(e.buf, tagFloat64Slice)
	e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(len(vs)))
	for _, v := range vs {
		e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v))
	}
}

// Decoder reads tag-length fields from a byte buffer with bounds checking.
// All read methods fail with a classified error on truncation or a tag
// mismatch; they never panic on malformed input.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder wraps an encoded payload
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns how many undecoded bytes are left
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

func (d *Decoder) expect(tag byte, need int) error {
	if d.Remaining() < 1+need {
		return errors.WrapInvalid(errors.ErrTruncatedPayload, "codec", "Decoder", "field read")
	}
	if got := d.buf[d.off]; got != tag {
		return errors.WrapInvalid(
			fmt.Errorf("field tag mismatch: want 0x%02x, got 0x%02x at offset %d", tag, got, d.off),
			"codec", "Decoder", "field read")
	}
	d.off++
	return nil
}

// ReadFloat64 reads a float64 field
func (d *Decoder) ReadFloat64() (float64, error) {
	if err := d.expect(tagFloat64, 8); err != nil {
		return 0, err
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	return v, nil
}

// ReadInt64 reads an int64 field
func (d *Decoder) ReadInt64() (int64, error) {
	if err := d.expect(tagInt64, 8); err != nil {
		return 0, err
	}
	v := int64(binary.LittleEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	return v, nil
}

// ReadUint64 reads a uint64 field
func (d *Decoder) ReadUint64() (uint64, error) {
	if err := d.expect(tagUint64, 8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

// ReadBool reads a bool field
func (d *Decoder) ReadBool() (bool, error) {
	if err := d.expect(tagBool, 1); err != nil {
		return false, err
	}
	v := d.buf[d.off] != 0
	d.off++
	return v, nil
}

// ReadUint8 reads a uint8 field
func (d *Decoder) ReadUint8() (uint8, error) {
	if err := d.expect(tagUint8, 1); err != nil {
		return 0, err
	}
	v := d.buf[d.off]
	d.off++
	return v, nil
}

// ReadString reads a length-prefixed string field
func (d *Decoder) ReadString() (string, error) {
	if err := d.expect(tagString, 4); err != nil {
		return "", err
	}
	n := int(binary.LittleEndian.Uint32(d.buf[d.off:]))
	d.off += 4
	if d.Remaining() < n {
		return "", errors.WrapInvalid(errors.ErrTruncatedPayload, "codec", "Decoder", "string body read")
	}
	s := string(d.buf[d.off : d.off+n])
	d.off += n
	return s, nil
}

// ReadBytes reads a length-prefixed byte-slice field. The returned slice is a
// copy; it does not alias the decode buffer.
func (d *Decoder) ReadBytes() ([]byte, error) {
	if err := d.expect(tagBytes, 4); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint32(d.buf[d.off:]))
	d.off += 4
	if d.Remaining() < n {
		return nil, errors.WrapInvalid(errors.ErrTruncatedPayload, "codec", "Decoder", "bytes body read")
	}
	out := make([]byte, n)
	copy(out, d.buf[d.off:d.off+n])
	d.off += n
	return out, nil
}

// ReadFloat64Slice reads a count-prefixed slice of float64 values
func (d *Decoder) ReadFloat64Slice() ([]float64, error) {
	if err := d.expect(tagFloat64Slice, 4); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint32(d.buf[d.off:]))
	d.off += 4
	if d.Remaining() < 8*n {
		return nil, errors.WrapInvalid(errors.ErrTruncatedPayload, "codec", "Decoder", "float64 slice body read")
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(d.buf[d.off:]))
		d.off += 8
	}
	return out, nil
}
