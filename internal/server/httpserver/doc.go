// Package httpserver provides the admin HTTP server of a node.
//
// Endpoints:
//
//   - GET /health: liveness of the node process
//   - GET /ready: whether the node is active and accepting work
//   - GET /members: the membership registry as JSON
//   - GET /metrics: Prometheus metrics
package httpserver
