// Package shutdown coordinates node termination.
//
// A Handler runs registered hooks in reverse registration order once the
// process receives SIGINT/SIGTERM or the node calls Trigger. Termination is
// either graceful (drain, leave the cluster) or immediate (after a fatal
// error); hooks read the mode from their context with IsImmediate.
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown(server.Stop)
//	err := h.Wait()
package shutdown
