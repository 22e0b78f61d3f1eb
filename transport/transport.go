// Package transport defines the contract for cross-process bridges.
//
// The bus itself is in-process only; a bridge is a pluggable collaborator
// that sits behind the same publish/subscribe API and relays selected topics
// over a real transport. The core never depends on a concrete bridge; it
// only defines the shape one must have.
package transport

import "context"

// Bridge relays selected topics between the in-process bus and an external
// transport. Exported topics flow out, imported topics flow in; a topic can
// be either but not both on the same bridge, or frames would loop.
type Bridge interface {
	// Start connects to the transport and begins relaying the configured
	// topics. It blocks only for the initial connection.
	Start(ctx context.Context) error

	// Stop flushes in-flight frames and disconnects. Safe to call once
	// after a successful Start.
	Stop() error

	// ExportTopic begins relaying local publishes on the topic outward
	ExportTopic(topic string) error

	// ImportTopic begins injecting external frames for the topic into the
	// local bus
	ImportTopic(topic string) error

	// Stats reports relay activity counters
	Stats() Stats
}

// Stats are the always-on bridge counters
type Stats struct {
	MessagesExported uint64
	MessagesImported uint64
	BytesExported    uint64
	BytesImported    uint64
	RelayErrors      uint64
	Reconnects       uint64
}
