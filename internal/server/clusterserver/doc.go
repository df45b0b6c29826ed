// Package clusterserver carries member-to-member traffic.
//
// Each member connection is a TCP (optionally TLS) stream of frames:
//
//	uint32 length | uint16 opcode | payload
//
// The first frame a dialing node sends is a bind handshake naming its
// member address. Frames after the handshake go to the transport service
// through a fixed pool of packet workers; a connection always lands on the
// same worker, so its frames are handled in order.
//
// Membership itself comes from the gossip layer (hashicorp/memberlist) and
// from bind handshakes; both report through the transport service.
package clusterserver
