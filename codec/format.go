package codec

import (
	"fmt"

	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

// Format identifies a wire serialization format. The format byte is part of
// the frame header and is stable across releases: it is the interop surface
// for cross-process transports.
type Format byte

const (
	// FormatBinary is a fixed tag-length layout suitable for interchange
	// with other middleware. Deterministic size for fixed-shape payloads.
	FormatBinary Format = 0x01

	// FormatText is a self-describing JSON envelope. Larger and slower than
	// Binary but readable and safe for ad-hoc message shapes.
	FormatText Format = 0x02

	// FormatArchive is an in-process zero-copy representation. The encoded
	// buffer doubles as the readable value; validity is scoped to the owning
	// ArchiveBuffer's lifetime and never crosses an address space.
	FormatArchive Format = 0x03
)

// String returns the lowercase format name
func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatText:
		return "text"
	case FormatArchive:
		return "archive"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(f))
	}
}

// Valid reports whether f is a supported wire format
func (f Format) Valid() bool {
	switch f {
	case FormatBinary, FormatText, FormatArchive:
		return true
	default:
		return false
	}
}

// ParseFormat converts a format name to its Format value
func ParseFormat(name string) (Format, error) {
	switch name {
	case "binary":
		return FormatBinary, nil
	case "text":
		return FormatText, nil
	case "archive":
		return FormatArchive, nil
	default:
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownFormat, name),
			"codec", "ParseFormat", "format lookup")
	}
}

// Frame header layout, stable interop surface:
// [magic 'R' '3'][format byte][payload length uint32 LE]
const (
	headerMagic0 = 'R'
	headerMagic1 = '3'

	// HeaderSize is the fixed frame header length in bytes
	HeaderSize = 7
)
