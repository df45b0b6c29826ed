package domain

import (
	"context"
	"net"
)

// Connection is a live member connection as seen by the transport layer.
//
// The transport layer references connections but does not own them: the
// IO server that accepted or dialed the connection closes it.
type Connection interface {
	// ID is a unique, opaque identifier for logging and worker selection.
	ID() string
	// Endpoint returns the member address the connection has been
	// attributed to. ok is false until the bind handshake completes.
	Endpoint() (addr Address, ok bool)
	// RemoteAddr is the socket peer address.
	RemoteAddr() net.Addr
	// Write sends a packet on the connection.
	Write(ctx context.Context, p *Packet) error
	// Close closes the connection.
	Close() error
}

// Packet is one inbound or outbound member frame.
type Packet struct {
	Conn    Connection
	Opcode  uint16
	Payload []byte
}

// Reserved opcodes handled by the transport layer itself. Opcodes at or
// above OpcodeEngineBase belong to the cluster engine.
const (
	OpcodeBind       uint16 = 0
	OpcodeHeartbeat  uint16 = 1
	OpcodeEngineBase uint16 = 16
)
