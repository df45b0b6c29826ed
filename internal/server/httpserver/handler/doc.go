// Package handler provides the admin HTTP handlers.
//
// JSON responses share one envelope (see Response); /metrics is served in
// the Prometheus text format and does not pass through this package.
package handler
