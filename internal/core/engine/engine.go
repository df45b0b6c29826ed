// Package engine routes member packets to the subsystem that owns their
// opcode and fans member-disconnect notifications out to dependent
// subsystems.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// PacketHandler processes packets of one opcode. It runs on the delivering
// IO goroutine and must not block for long.
type PacketHandler interface {
	HandlePacket(p *domain.Packet) error
}

// PacketHandlerFunc adapts a function to PacketHandler.
type PacketHandlerFunc func(p *domain.Packet) error

// HandlePacket calls f(p).
func (f PacketHandlerFunc) HandlePacket(p *domain.Packet) error {
	return f(p)
}

// DisconnectListener is notified when a member connection is lost.
type DisconnectListener interface {
	MemberDisconnected(addr domain.Address)
}

// DisconnectListenerFunc adapts a function to DisconnectListener.
type DisconnectListenerFunc func(addr domain.Address)

// MemberDisconnected calls f(addr).
func (f DisconnectListenerFunc) MemberDisconnected(addr domain.Address) {
	f(addr)
}

// Stats counts engine activity.
type Stats struct {
	Dispatched  uint64
	Unhandled   uint64
	Failed      uint64
	Disconnects uint64
}

// Engine is the cluster engine's dispatch surface.
type Engine struct {
	logger *slog.Logger

	mu        sync.RWMutex
	handlers  map[uint16]PacketHandler
	listeners []DisconnectListener

	dispatched  atomic.Uint64
	unhandled   atomic.Uint64
	failed      atomic.Uint64
	disconnects atomic.Uint64
}

// New creates an engine with no handlers.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:   logger.With("component", "engine"),
		handlers: make(map[uint16]PacketHandler),
	}
}

// Register installs the handler for opcode. Opcodes below
// domain.OpcodeEngineBase are reserved for the transport layer.
func (e *Engine) Register(opcode uint16, h PacketHandler) error {
	if opcode < domain.OpcodeEngineBase {
		return fmt.Errorf("engine: opcode %d is reserved", opcode)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.handlers[opcode]; exists {
		return fmt.Errorf("engine: opcode %d already registered", opcode)
	}
	e.handlers[opcode] = h
	return nil
}

// AddDisconnectListener subscribes l to member-disconnect notifications.
func (e *Engine) AddDisconnectListener(l DisconnectListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// HandlePacket dispatches p by opcode. Heartbeats carry no payload for the
// engine and are accepted silently; unknown opcodes are dropped.
func (e *Engine) HandlePacket(p *domain.Packet) {
	if p.Opcode == domain.OpcodeHeartbeat {
		return
	}

	e.mu.RLock()
	h, ok := e.handlers[p.Opcode]
	e.mu.RUnlock()

	if !ok {
		e.unhandled.Add(1)
		e.logger.Debug("dropping packet with unknown opcode", "opcode", p.Opcode, "conn", connID(p))
		return
	}

	e.dispatched.Add(1)
	if err := h.HandlePacket(p); err != nil {
		e.failed.Add(1)
		e.logger.Warn("packet handler failed", "opcode", p.Opcode, "conn", connID(p), "error", err)
	}
}

// OnMemberDisconnect notifies every listener once. A panicking listener
// does not prevent delivery to the others.
func (e *Engine) OnMemberDisconnect(addr domain.Address) {
	e.disconnects.Add(1)

	e.mu.RLock()
	listeners := append([]DisconnectListener(nil), e.listeners...)
	e.mu.RUnlock()

	for _, l := range listeners {
		e.notify(l, addr)
	}
}

func (e *Engine) notify(l DisconnectListener, addr domain.Address) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("disconnect listener panicked", "member", addr.String(), "panic", r)
		}
	}()
	l.MemberDisconnected(addr)
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Dispatched:  e.dispatched.Load(),
		Unhandled:   e.unhandled.Load(),
		Failed:      e.failed.Load(),
		Disconnects: e.disconnects.Load(),
	}
}

func connID(p *domain.Packet) string {
	if p.Conn == nil {
		return ""
	}
	return p.Conn.ID()
}
