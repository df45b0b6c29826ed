package clusterserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/core/engine"
	"github.com/yndnr/gridmesh/internal/core/lane"
	"github.com/yndnr/gridmesh/internal/core/membership"
	"github.com/yndnr/gridmesh/internal/server/config"
	"github.com/yndnr/gridmesh/internal/server/transport"
)

const testOpcode = domain.OpcodeEngineBase

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testNode struct {
	mu         sync.Mutex
	addr       domain.Address
	failed     []domain.Address
	terminated []error
}

func (n *testNode) IsActive() bool { return true }
func (n *testNode) Joined() bool   { return false }

func (n *testNode) ThisAddress() domain.Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.addr
}

func (n *testNode) MemberJoined(domain.Address) {}

func (n *testNode) FailedConnection(addr domain.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, addr)
}

func (n *testNode) Terminate(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.terminated = append(n.terminated, err)
}

func (n *testNode) failures() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failed)
}

type nopCommands struct{}

func (nopCommands) Handle(context.Context, *domain.CommandRequest) *domain.CommandResponse {
	return domain.Success("")
}

// harness is one node with a real lane, registry and engine around a
// bound and started member server.
type harness struct {
	node        *testNode
	registry    *membership.Registry
	svc         *transport.Service
	server      *Server
	packets     chan *domain.Packet
	disconnects chan domain.Address
}

func testConfig() *config.ServerConfig {
	cfg := config.Default()
	cfg.Network.BindAddr = "127.0.0.1"
	cfg.Network.Port = 0
	cfg.Network.PortAutoIncrement = false
	cfg.Socket.BindAny = false
	cfg.IO.ConnectTimeout = 2 * time.Second
	return cfg
}

func newService(t *testing.T, cfg *config.ServerConfig, node *testNode, reg *membership.Registry, eng *engine.Engine) *transport.Service {
	t.Helper()
	logger := discardLogger()

	ioLane := lane.New(lane.IO, lane.WithLogger(logger))
	ioLane.Start()
	t.Cleanup(ioLane.Abort)

	svc, err := transport.New(transport.Deps{
		Config:   cfg,
		Node:     node,
		Members:  reg,
		Engine:   eng,
		Lane:     ioLane,
		Commands: nopCommands{},
		Logger:   logger,
	})
	require.NoError(t, err)
	return svc
}

func newHarness(t *testing.T, mutate func(*config.ServerConfig)) *harness {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		node:        &testNode{},
		registry:    membership.NewRegistry(domain.Address{}),
		packets:     make(chan *domain.Packet, 64),
		disconnects: make(chan domain.Address, 8),
	}

	eng := engine.New(discardLogger())
	require.NoError(t, eng.Register(testOpcode, engine.PacketHandlerFunc(func(p *domain.Packet) error {
		h.packets <- p
		return nil
	})))
	eng.AddDisconnectListener(engine.DisconnectListenerFunc(func(addr domain.Address) {
		h.disconnects <- addr
	}))
	h.svc = newService(t, cfg, h.node, h.registry, eng)

	var err error
	h.server, err = New(h.svc)
	require.NoError(t, err)
	addr, err := h.server.Bind()
	require.NoError(t, err)
	h.node.mu.Lock()
	h.node.addr = addr
	h.node.mu.Unlock()
	h.registry.SetSelf(addr)

	require.NoError(t, h.server.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.server.Shutdown(ctx)
	})
	return h
}

func (h *harness) addr() domain.Address {
	return h.node.ThisAddress()
}

func (h *harness) hasMember(addr domain.Address) bool {
	_, ok := h.registry.Member(addr)
	return ok
}

func waitDisconnect(t *testing.T, ch <-chan domain.Address) domain.Address {
	t.Helper()
	select {
	case addr := <-ch:
		return addr
	case <-time.After(3 * time.Second):
		t.Fatal("no disconnect notification")
		return domain.Address{}
	}
}

// freeAddress returns a loopback address nothing listens on.
func freeAddress(t *testing.T) domain.Address {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr, _ := domain.AddressFromNet(ln.Addr())
	require.NoError(t, ln.Close())
	return addr
}

func waitPacket(t *testing.T, ch <-chan *domain.Packet) *domain.Packet {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("no packet received")
		return nil
	}
}
