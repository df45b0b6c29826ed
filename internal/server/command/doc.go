// Package command dispatches client command frames to named handlers.
//
// Operations:
//
//   - get-count <name>: current count of a countdown latch (created on first use)
//   - count-down <name>: decrement a latch, returning the new count
//   - try-set-count <name> <n>: set a latch's count if it is zero
//   - members: comma-separated addresses of the known members
package command
