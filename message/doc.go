// Package message provides the built-in robot message types carried by the
// bus: kinematic state, velocity commands, range scans and log records.
//
// Every type implements codec.Payload (TypeName, WireSize, MarshalWire,
// UnmarshalWire) for the Binary and Archive formats and carries JSON struct
// tags for the Text format. Types register themselves with the codec type
// registry in init(), so importing this package is enough to make its
// messages decodable.
//
// Messages are immutable once handed to the bus; none of the types hold
// references to mutable shared state.
package message
