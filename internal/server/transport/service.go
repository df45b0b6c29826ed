package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/core/lane"
	"github.com/yndnr/gridmesh/internal/infra/oom"
	"github.com/yndnr/gridmesh/internal/infra/tlsroots"
	"github.com/yndnr/gridmesh/internal/server/config"
	"github.com/yndnr/gridmesh/internal/telemetry/metric"
	"github.com/yndnr/gridmesh/pkg/crypto/adaptive"
	"github.com/yndnr/gridmesh/pkg/portset"
)

// Node is the part of the node lifecycle the transport layer needs.
type Node interface {
	IsActive() bool
	ThisAddress() domain.Address
	// Joined reports whether this node has become part of a cluster.
	Joined() bool
	// MemberJoined is called on the io lane after a member was registered.
	MemberJoined(addr domain.Address)
	// FailedConnection records an outbound connection failure during join.
	FailedConnection(addr domain.Address)
	// Terminate shuts the node down immediately.
	Terminate(err error)
}

// Members is the membership registry.
type Members interface {
	Member(addr domain.Address) (*domain.Member, bool)
	Add(addr domain.Address) (*domain.Member, bool)
	Remove(addr domain.Address) (*domain.Member, bool)
	Members() []*domain.Member
}

// Engine receives the packets and disconnects of the cluster.
type Engine interface {
	HandlePacket(p *domain.Packet)
	OnMemberDisconnect(addr domain.Address)
}

// Executor runs tasks asynchronously in submission order.
type Executor interface {
	Submit(task lane.Task) error
	Pending() int
}

// Commands answers client command frames.
type Commands interface {
	Handle(ctx context.Context, req *domain.CommandRequest) *domain.CommandResponse
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Config   *config.ServerConfig
	Node     Node
	Members  Members
	Engine   Engine
	Lane     Executor
	OOM      oom.Handler
	Commands Commands
	Logger   *slog.Logger
	Metrics  *metric.Registry
}

// Service is the transport facade used by the IO servers.
type Service struct {
	cfg      *config.ServerConfig
	node     Node
	members  Members
	engine   Engine
	lane     Executor
	oom      oom.Handler
	commands Commands
	logger   *slog.Logger
	metrics  *metric.Registry

	outbound portset.Set

	cipherOnce sync.Once
	cipher     adaptive.Cipher
	cipherErr  error

	tlsOnce sync.Once
	tls     *tlsroots.MemberTLS
	tlsErr  error
}

// New creates a Service. The outbound port policy is resolved here, so a
// malformed definition fails construction.
func New(deps Deps) (*Service, error) {
	if deps.Config == nil || deps.Node == nil || deps.Members == nil ||
		deps.Engine == nil || deps.Lane == nil || deps.Commands == nil {
		return nil, domain.ErrInvalidConfig.WithDetails("transport: incomplete dependencies")
	}

	outbound, err := config.OutboundPorts(deps.Config)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      deps.Config,
		node:     deps.Node,
		members:  deps.Members,
		engine:   deps.Engine,
		lane:     deps.Lane,
		oom:      deps.OOM,
		commands: deps.Commands,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		outbound: outbound,
	}
	if s.oom == nil {
		s.oom = oom.Dispatcher{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metric.NewRegistry()
	}
	s.logger = s.logger.With("component", "transport")
	return s, nil
}

// IsActive reports whether the node accepts work.
func (s *Service) IsActive() bool {
	return s.node.IsActive()
}

// ThisAddress returns the member address of this node.
func (s *Service) ThisAddress() domain.Address {
	return s.node.ThisAddress()
}

// Logger returns the transport logger.
func (s *Service) Logger() *slog.Logger {
	return s.logger
}

// Metrics returns the metrics registry.
func (s *Service) Metrics() *metric.Registry {
	return s.metrics
}

// HandleMemberPacket refreshes the liveness of the sending member, when the
// connection is attributed to a registered one, and hands the packet to the
// engine. Packets from unknown or departed members are still forwarded.
//
// The lookup and the refresh are not atomic with respect to a concurrent
// removal: the refresh may land on a member that was just removed, which
// has no effect on the registry.
func (s *Service) HandleMemberPacket(p *domain.Packet) {
	known := false
	if p.Conn != nil {
		if addr, ok := p.Conn.Endpoint(); ok {
			if m, ok := s.members.Member(addr); ok {
				m.DidRead()
				known = true
			}
		}
	}
	s.metrics.RecordMemberPacket(known)
	s.engine.HandlePacket(p)
}

// HandleClientCommand passes a client command to the dispatcher.
func (s *Service) HandleClientCommand(ctx context.Context, req *domain.CommandRequest) *domain.CommandResponse {
	return s.commands.Handle(ctx, req)
}

// RemoveEndpoint schedules removal of the member at addr.
func (s *Service) RemoveEndpoint(addr domain.Address) {
	s.metrics.EndpointRemovals.Inc()
	s.submit(&removeMemberTask{members: s.members, addr: addr, logger: s.logger})
}

// RegisterEndpoint schedules registration of a member reported by a
// handshake or the join protocol.
func (s *Service) RegisterEndpoint(addr domain.Address) {
	if addr.Equal(s.ThisAddress()) {
		return
	}
	s.submit(&addMemberTask{members: s.members, node: s.node, addr: addr, logger: s.logger})
}

// OnDisconnect schedules one disconnect notification to the engine. A nil
// address, a connection never attributed to a member, is ignored.
func (s *Service) OnDisconnect(addr *domain.Address) {
	if addr == nil {
		return
	}
	s.submit(&memberDisconnectedTask{engine: s.engine, addr: *addr})
}

// ExecuteAsync runs task on the io lane.
func (s *Service) ExecuteAsync(task lane.Task) error {
	return s.lane.Submit(task)
}

// PendingTasks returns the number of tasks queued on the io lane.
func (s *Service) PendingTasks() int {
	return s.lane.Pending()
}

// ShouldConnectTo rejects connecting to this node's own address.
func (s *Service) ShouldConnectTo(addr domain.Address) error {
	if addr.Equal(s.ThisAddress()) {
		return domain.ErrConnectToSelf.WithDetails(addr.String())
	}
	return nil
}

// OnFailedConnection records a failed outbound connection while the node
// is still joining. After the join it is the connection monitor's concern.
func (s *Service) OnFailedConnection(addr domain.Address) {
	s.metrics.ConnectionFailures.Inc()
	if !s.node.Joined() {
		s.node.FailedConnection(addr)
	}
}

// OnFatalError terminates the node immediately.
func (s *Service) OnFatalError(err error) {
	s.logger.Error("fatal IO error, terminating node", "error", err)
	s.metrics.FatalErrors.Inc()
	s.node.Terminate(err)
}

// OnOutOfMemory reports resource exhaustion to the OOM handler. The node
// keeps running.
func (s *Service) OnOutOfMemory(err error) {
	s.metrics.ResourceExhaustions.Inc()
	s.oom.OnOutOfMemory(err)
}

func (s *Service) submit(task lane.Task) {
	if err := s.lane.Submit(task); err != nil {
		s.logger.Debug("io task dropped", "kind", task.Kind(), "error", err)
	}
}
