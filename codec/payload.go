package codec

import (
	"fmt"
	"sync"

	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

// Payload is the contract a message type satisfies to cross the bus. Types
// implement the binary wire methods for the Binary and Archive formats and
// rely on standard JSON struct tags for the Text format.
type Payload interface {
	// TypeName returns the stable wire name of this message type
	TypeName() string

	// WireSize returns the exact number of bytes MarshalWire will append
	WireSize() int

	// MarshalWire appends the payload's fields to the encoder
	MarshalWire(enc *Encoder) error

	// UnmarshalWire reads the payload's fields from the decoder
	UnmarshalWire(dec *Decoder) error
}

// Factory constructs an empty payload ready for decoding
type Factory func() Payload

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a payload type decodable by wire name. Message packages call
// this from init(); registering the same name twice panics, matching the
// duplicate-registration guard used elsewhere in the framework.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("codec: payload type %q already registered", name))
	}
	registry[name] = factory
}

// NewPayload constructs an empty payload for the given wire name
func NewPayload(name string) (Payload, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownMessageType, name),
			"codec", "NewPayload", "type lookup")
	}
	return factory(), nil
}

// RegisteredTypes returns the wire names of all registered payload types
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
