// Package logger provides structured logging for gridmesh.
//
// It configures log/slog handlers for the node:
//
//   - logger.go: handler construction, dynamic level, the trace level
//   - context.go: carrying a logger and correlation IDs in a context
//   - redact.go: masking of secrets (encryption passwords, salts, keys)
//   - hclog.go: bridging hashicorp libraries (memberlist) into slog
//
// Components receive a *slog.Logger and fall back to slog.Default()
// when none is given.
package logger
