// Package errors provides error classification and wrapping for the
// middleware core.
//
// Errors fall into three classes:
//
//   - Transient: temporary conditions (lost transport connections) that a
//     caller may retry with backoff.
//   - Invalid: malformed input or configuration; retrying will not help.
//   - Expected: typed outcomes of bounded operations — a receive that timed
//     out, a Reject-policy queue that was full, a subscriber that closed
//     mid-operation. These are part of the API contract, not failures.
//
// The Wrap* helpers attach component and operation context in the standard
// "component.method: action failed: cause" form and classify in one step:
//
//	if err := queue.push(env); err != nil {
//	    return errors.WrapExpected(err, "Publisher", "Publish", "queue push")
//	}
//
// Sentinel variables (ErrQueueFull, ErrTimeout, ErrChannelClosed, ...) are
// errors.Is-comparable through any number of wrapping layers.
package errors
