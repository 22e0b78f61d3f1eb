// Package metric provides Prometheus-backed observability for the middleware
// core: a duplicate-guarded MetricsRegistry, the core bus/codec/executor
// metric set, and an optional HTTP scrape endpoint.
//
// Components follow a dual-tracking pattern: always-on atomic statistics for
// internal decisions and tests, plus optional Prometheus metrics registered
// through this package for external monitoring. Passing a nil registry
// disables the Prometheus half without affecting behavior.
package metric
