// Package tlsroots builds the TLS configuration of member connections.
//
// A member connection is accepted by one node and dialed by another, so
// the same certificate serves both sides: Member returns a server config
// for the listener and a client config for outbound dials. The key pair is
// reloaded when its files change.
package tlsroots
