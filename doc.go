// Package ros3 is a lightweight robotics middleware core: a topic-based
// publish/subscribe message bus, a multi-format wire serializer, and a
// dual-lane deadline-aware executor, intended as a lighter alternative to
// ROS2/DDS-style middleware for latency-sensitive control software.
//
// # Architecture
//
//	┌───────────────────────────────────┐
//	│          Executor                 │  critical + best-effort lanes,
//	│  (spawn, deadlines, priorities)   │  deadline tracking
//	└───────────────┬───────────────────┘
//	                │ runs application work that calls
//	┌───────────────▼───────────────────┐
//	│        Bus (Registry)             │  topic → bounded delivery queues,
//	│  Publisher / Subscriber handles   │  overflow policies, atomic stats
//	└───────────────┬───────────────────┘
//	                │ carries frames produced by
//	┌───────────────▼───────────────────┐
//	│           Codec                   │  Binary / Text / Archive formats,
//	│  (encode, decode, buffer pool)    │  refcounted pooled buffers
//	└───────────────────────────────────┘
//
// Application code submits work to the executor with a priority and an
// optional deadline. Workers call publishers, which encode once and fan the
// frame out to every subscriber queue on the topic; each queue applies its
// own overflow policy so one slow consumer never stalls the rest.
// Subscribers drain their own queue independently and decode on receive.
//
// # Packages
//
// Core:
//   - codec: wire formats (binary tag-length, JSON text, zero-copy archive),
//     payload type registry, pooled refcounted buffers
//   - message: robot payload types (RobotState, Twist, LaserScan, LogEntry)
//   - bus: sharded topic registry, Publisher/Subscriber handles, bounded
//     delivery queues with Reject/EvictOldest/Block overflow
//   - executor: dual-lane scheduler with priority queue dispatch, deadline
//     miss reporting, and task cancellation
//   - latency: wait-free latency histogram with percentile queries
//
// Infrastructure:
//   - errors: classified errors and domain sentinels
//   - metric: Prometheus registry, core middleware metrics, /metrics server
//   - config: YAML configuration with validation
//   - transport, transport/natsbridge: pluggable cross-host relay over NATS
//   - pkg/retry: exponential backoff for transient failures
//
// # Usage
//
//	registry := bus.NewRegistry()
//
//	sub, _ := bus.NewSubscriber(registry, "/cmd_vel", 64, bus.EvictOldest)
//	pub, _ := bus.NewPublisher(registry, "/cmd_vel", codec.FormatBinary)
//
//	ex, _ := executor.New(executor.DefaultConfig())
//	_ = ex.Start(ctx)
//
//	ex.Spawn(9, 5*time.Millisecond, func() {
//	    _ = pub.Publish(&message.Twist{Linear: [3]float64{0.5, 0, 0}})
//	})
//
//	msg, _ := sub.ReceiveWithTimeout(100 * time.Millisecond)
//
// Everything is passed explicitly; there are no package-level singletons.
package ros3
