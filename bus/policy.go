package bus

import (
	"fmt"

	"github.com/ruvnet/agentic-robotics-sub000/errors"
)

// OverflowPolicy defines how a delivery queue behaves when it reaches
// capacity.
type OverflowPolicy int

const (
	// Reject refuses the new message; the push fails with ErrQueueFull.
	Reject OverflowPolicy = iota

	// EvictOldest drops the oldest queued message to make room and bumps the
	// subscriber's drop counter. The push itself always succeeds.
	EvictOldest

	// Block waits for the consumer to free space, bounded by the publisher's
	// block timeout. Only the one full queue waits; delivery to other
	// subscribers proceeds independently.
	Block
)

// String returns a human-readable representation of the overflow policy
func (p OverflowPolicy) String() string {
	switch p {
	case Reject:
		return "Reject"
	case EvictOldest:
		return "EvictOldest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// ParseOverflowPolicy converts a policy name to its OverflowPolicy value
func ParseOverflowPolicy(name string) (OverflowPolicy, error) {
	switch name {
	case "reject":
		return Reject, nil
	case "evict_oldest":
		return EvictOldest, nil
	case "block":
		return Block, nil
	default:
		return 0, errors.WrapInvalid(
			fmt.Errorf("unknown overflow policy %q", name),
			"bus", "ParseOverflowPolicy", "policy lookup")
	}
}
