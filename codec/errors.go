package codec

import "fmt"

// SerializationError reports an encode or decode failure. It carries the
// offending format and a human-readable cause; malformed input surfaces as a
// SerializationError, never as a panic.
type SerializationError struct {
	Format Format
	Op     string // "encode" or "decode"
	Err    error
}

// Error implements the error interface
func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization: %s %s: %v", e.Op, e.Format, e.Err)
}

// Unwrap returns the underlying cause
func (e *SerializationError) Unwrap() error {
	return e.Err
}

func encodeErr(format Format, err error) error {
	return &SerializationError{Format: format, Op: "encode", Err: err}
}

func decodeErr(format Format, err error) error {
	return &SerializationError{Format: format, Op: "decode", Err: err}
}
