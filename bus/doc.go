// Package bus implements the in-process topic registry connecting publishers
// to subscribers.
//
// # Delivery model
//
// A Publisher encodes each message exactly once, then pushes the encoded
// frame (or, for the Archive format, a shared zero-copy handle) into every
// registered subscriber's bounded delivery queue for the topic. Each queue
// applies its own overflow policy — Reject, EvictOldest or Block — so one
// slow subscriber can never delay or fail delivery to the others.
//
// Ordering: per (publisher, subscriber) pair, delivery is FIFO. Across
// publishers on the same topic, and across subscribers, no ordering is
// guaranteed.
//
// # Locking
//
// The sharded topic map is the only mutably shared structure. Publishing
// takes a shard's read lock just long enough to snapshot the subscriber
// list; all queue pushes happen after the lock is released, so a full
// Block-policy queue stalls only its own publisher call and only for that
// one queue. Register and unregister take the shard's write lock briefly.
//
// The registry holds non-owning queue references: a subscriber that closes
// (or is garbage collected after Close) is swept out lazily on the next
// publish that observes the closed queue.
//
// # Topics
//
// Topics are opaque strings, created implicitly on first subscribe and
// removed with their last queue. Publishing to a topic with no subscribers
// encodes (stats stay meaningful) and delivers nowhere.
package bus
