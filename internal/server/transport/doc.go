// Package transport is the boundary between the node's IO servers and its
// cluster engine.
//
// The IO servers (member connections, client commands) own sockets and
// goroutines. They call into Service for every event that reaches the
// cluster: inbound member packets, client commands, disconnects, endpoint
// removals and faults. Service never blocks an IO goroutine on membership
// work; mutations are queued as typed tasks on the io lane and run in
// submission order.
package transport
