// Package config loads and validates the middleware's YAML configuration.
//
// A config file supplies lane sizing for the executor, subscriber queue
// defaults for the bus, buffer pool sizing, the metrics endpoint, logging,
// and the optional NATS bridge. Every section has a sensible default; a
// missing file section keeps its default and a handful of deployment knobs
// can be overridden through ROS3_-prefixed environment variables.
//
// Durations are written in Go syntax ("10ms", "2s"), not raw nanoseconds.
package config
