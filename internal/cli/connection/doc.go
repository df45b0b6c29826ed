// Package connection reaches a gridmesh node from the CLI: commands go to
// the node's command port over one reused connection, status queries to its
// admin HTTP port.
package connection
