// Package metric provides Prometheus metrics for gridmesh.
//
//   - prometheus.go: the metrics registry, recording helpers and HTTP handler
//   - collector.go: a collector sampling live node state at scrape time
//
// Metrics are exposed at /metrics on the admin server.
package metric
