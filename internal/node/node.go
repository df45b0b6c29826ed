package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/core/engine"
	"github.com/yndnr/gridmesh/internal/core/lane"
	"github.com/yndnr/gridmesh/internal/core/membership"
	"github.com/yndnr/gridmesh/internal/core/objects"
	"github.com/yndnr/gridmesh/internal/discovery/multicast"
	"github.com/yndnr/gridmesh/internal/infra/oom"
	"github.com/yndnr/gridmesh/internal/infra/shutdown"
	"github.com/yndnr/gridmesh/internal/server/clusterserver"
	"github.com/yndnr/gridmesh/internal/server/command"
	"github.com/yndnr/gridmesh/internal/server/commandserver"
	"github.com/yndnr/gridmesh/internal/server/config"
	"github.com/yndnr/gridmesh/internal/server/httpserver"
	"github.com/yndnr/gridmesh/internal/server/transport"
	"github.com/yndnr/gridmesh/internal/telemetry/logger"
	"github.com/yndnr/gridmesh/internal/telemetry/metric"
	"github.com/yndnr/gridmesh/pkg/cmap"
)

// gossipLeaveTimeout bounds the leave broadcast on graceful shutdown.
const gossipLeaveTimeout = 5 * time.Second

// Options configures a Node.
type Options struct {
	Config  *config.ServerConfig
	Logger  *slog.Logger
	Metrics *metric.Registry
	OOM     oom.Handler

	// OnTerminate is called once when the node hits a fatal error. When nil
	// the node shuts itself down immediately.
	OnTerminate func(err error)
}

// Node is a running gridmesh member.
type Node struct {
	cfg     *config.ServerConfig
	id      string
	logger  *slog.Logger
	metrics *metric.Registry

	addr     atomic.Pointer[domain.Address]
	active   atomic.Bool
	joined   atomic.Bool
	started  atomic.Bool
	stopping atomic.Bool

	// outbound connection failures seen before the node joined
	failed *cmap.Map[domain.Address, time.Time]

	onTerminate   func(err error)
	terminateOnce sync.Once

	ioLane   *lane.Lane
	members  *membership.Registry
	engine   *engine.Engine
	objects  *objects.Registry
	commands *command.Dispatcher
	svc      *transport.Service
	cluster  *clusterserver.Server

	gossip    *clusterserver.Gossip
	mcast     *multicast.UDPTransport
	announcer *multicast.Announcer
	cmdServer *commandserver.Server
	cmdAddr   net.Addr
	admin     *httpserver.Server
	adminAddr net.Addr

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	// spawnMu orders goroutines started by callbacks against Shutdown's
	// wg.Wait: stopping only flips, and wg.Add only runs, while it is held.
	spawnMu sync.Mutex
}

// New assembles a node from opts. Nothing is bound or started until Start.
func New(opts Options) (*Node, error) {
	if opts.Config == nil {
		return nil, domain.ErrInvalidConfig.WithDetails("node: nil config")
	}
	cfg := *opts.Config
	if cfg.Node.ID == "" {
		cfg.Node.ID = config.GenerateNodeID()
	}

	l := logger.OrDefault(opts.Logger).With("node_id", cfg.Node.ID)
	metrics := opts.Metrics
	if metrics == nil {
		metrics = metric.NewRegistry()
	}

	n := &Node{
		cfg:         &cfg,
		id:          cfg.Node.ID,
		logger:      l,
		metrics:     metrics,
		failed:      cmap.New[domain.Address, time.Time](domain.Address.String),
		onTerminate: opts.OnTerminate,
	}
	var zero domain.Address
	n.addr.Store(&zero)

	n.ioLane = lane.New(lane.IO, lane.WithLogger(l), lane.WithObserver(metrics))
	n.members = membership.NewRegistry(zero)
	n.engine = engine.New(l)
	n.engine.AddDisconnectListener(engine.DisconnectListenerFunc(n.memberDisconnected))
	n.objects = objects.NewRegistry()

	n.commands = command.NewDispatcher(n, command.WithLogger(l), command.WithRecorder(metrics))
	if err := command.RegisterBuiltins(n.commands); err != nil {
		return nil, err
	}

	svc, err := transport.New(transport.Deps{
		Config:   n.cfg,
		Node:     n,
		Members:  n.members,
		Engine:   n.engine,
		Lane:     n.ioLane,
		OOM:      opts.OOM,
		Commands: n.commands,
		Logger:   l,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}
	n.svc = svc

	if n.cluster, err = clusterserver.New(svc); err != nil {
		return nil, err
	}

	metrics.MustRegister(metric.NewCollector(n))
	return n, nil
}

// Start binds the member listener, starts the servers and runs discovery.
// A failed start releases whatever was already running.
func (n *Node) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return errors.New("node: already started")
	}
	n.runCtx, n.cancel = context.WithCancel(ctx)
	n.ioLane.Start()

	if err := n.start(); err != nil {
		n.Shutdown(shutdown.WithMode(context.Background(), shutdown.Immediate))
		return err
	}
	n.markJoined()
	n.logger.Info("node started", "address", n.ThisAddress().String(), "members", n.members.Size())
	return nil
}

func (n *Node) start() error {
	addr, err := n.cluster.Bind()
	if err != nil {
		return fmt.Errorf("bind member listener: %w", err)
	}
	n.addr.Store(&addr)
	n.members.SetSelf(addr)

	if err := n.cluster.Start(n.runCtx); err != nil {
		return err
	}
	n.active.Store(true)

	if err := n.startCommandServer(); err != nil {
		return fmt.Errorf("start command server: %w", err)
	}
	if err := n.startAdmin(); err != nil {
		return fmt.Errorf("start admin server: %w", err)
	}
	if err := n.startMulticast(addr); err != nil {
		return fmt.Errorf("start multicast discovery: %w", err)
	}
	if err := n.startGossip(addr); err != nil {
		return fmt.Errorf("start gossip: %w", err)
	}
	return nil
}

func (n *Node) startCommandServer() error {
	cc := n.cfg.Server.Command
	if !cc.Enabled {
		return nil
	}
	n.cmdServer = commandserver.New(cc, n.svc, n.logger)
	addr, err := n.cmdServer.Listen()
	if err != nil {
		return err
	}
	n.cmdAddr = addr
	return n.cmdServer.Start(n.runCtx)
}

func (n *Node) startAdmin() error {
	ac := n.cfg.Server.Admin
	if !ac.Enabled {
		return nil
	}
	ln, err := net.Listen("tcp", ac.Addr)
	if err != nil {
		return err
	}
	n.adminAddr = ln.Addr()
	n.admin = httpserver.New(ac.Addr, httpserver.NewRouter(&httpserver.RouterConfig{
		Node:    n,
		Metrics: n.metrics.Handler(),
		Logger:  n.logger,
	}))

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.admin.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("admin server failed", "error", err)
		}
	}()
	n.logger.Info("admin server listening", "address", ln.Addr().String())
	return nil
}

func (n *Node) startMulticast(addr domain.Address) error {
	mc := n.cfg.Discovery.Multicast
	if !mc.Enabled {
		return nil
	}
	udp, err := multicast.ListenUDP(n.runCtx, multicast.UDPConfig{
		Group:     mc.Group,
		Port:      mc.Port,
		TTL:       mc.TTL,
		Loopback:  mc.Loopback,
		Interface: mc.Interface,
	})
	if err != nil {
		return err
	}
	n.mcast = udp

	n.announcer = multicast.NewAnnouncer(addr, udp, n.logger,
		multicast.WithInterval(mc.Interval),
		multicast.WithRecorder(n.metrics))
	n.announcer.Start()

	recv := multicast.NewReceiver(addr, udp, n.discovered, n.logger)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := recv.Run(n.runCtx); err != nil {
			n.logger.Warn("multicast receiver stopped", "error", err)
		}
	}()
	return nil
}

func (n *Node) startGossip(addr domain.Address) error {
	gc := n.cfg.Discovery.Gossip
	if !gc.Enabled {
		return nil
	}
	g, err := clusterserver.NewGossip(clusterserver.GossipConfig{
		NodeID:     n.id,
		BindAddr:   gc.BindAddr,
		BindPort:   gc.BindPort,
		MemberAddr: addr,
		OnJoin:     n.gossipJoined,
		OnLeave:    n.svc.RemoveEndpoint,
		Logger:     n.logger,
	})
	if err != nil {
		return err
	}
	n.gossip = g
	n.cluster.SetGossipAddress(g.LocalAddr())

	if _, err := g.Join(gc.Seeds); err != nil {
		n.logger.Warn("no gossip seed reachable, running alone", "seeds", gc.Seeds, "error", err)
	}
	return nil
}

// Shutdown stops discovery, the servers and the io lane. With an immediate
// mode in ctx (see shutdown.WithMode) the node does not announce its
// departure and queued io tasks are discarded. Only the first call has an
// effect.
func (n *Node) Shutdown(ctx context.Context) error {
	n.spawnMu.Lock()
	first := n.stopping.CompareAndSwap(false, true)
	n.spawnMu.Unlock()
	if !first {
		return nil
	}
	n.active.Store(false)
	immediate := shutdown.IsImmediate(ctx)
	n.logger.Info("node shutting down", "immediate", immediate)

	var errs []error
	if n.announcer != nil {
		n.announcer.Stop()
		select {
		case <-n.announcer.Done():
		case <-ctx.Done():
		}
	}
	if n.mcast != nil {
		if err := n.mcast.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if n.gossip != nil {
		if !immediate {
			if err := n.gossip.Leave(gossipLeaveTimeout); err != nil {
				errs = append(errs, err)
			}
		}
		if err := n.gossip.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if n.cmdServer != nil {
		if err := n.cmdServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("command server: %w", err))
		}
	}
	if n.admin != nil {
		if err := n.admin.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin server: %w", err))
		}
	}
	if err := n.cluster.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("member server: %w", err))
	}
	if n.cancel != nil {
		n.cancel()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}

	if immediate {
		n.ioLane.Abort()
	} else if err := n.ioLane.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("io lane: %w", err))
	}

	n.logger.Info("node stopped")
	return errors.Join(errs...)
}

// gossipJoined registers a member reported by gossip and connects to it.
func (n *Node) gossipJoined(addr domain.Address) {
	n.svc.RegisterEndpoint(addr)
	n.goConnect(addr)
}

// discovered handles a multicast announcement from another node.
func (n *Node) discovered(addr domain.Address) {
	if _, ok := n.members.Member(addr); ok {
		return
	}
	n.goConnect(addr)
}

func (n *Node) goConnect(addr domain.Address) {
	n.spawn(func() {
		ctx, cancel := context.WithTimeout(n.runCtx, n.cfg.IO.ConnectTimeout)
		defer cancel()
		if _, err := n.cluster.Connect(ctx, addr); err != nil {
			n.logger.Debug("member connect failed", "member", addr.String(), "error", err)
		}
	})
}

// spawn runs fn on a goroutine tracked by Shutdown. It reports false, and
// does nothing, once the node is stopping.
func (n *Node) spawn(fn func()) bool {
	n.spawnMu.Lock()
	defer n.spawnMu.Unlock()
	if n.stopping.Load() {
		return false
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		fn()
	}()
	return true
}

func (n *Node) memberDisconnected(addr domain.Address) {
	n.logger.Info("member connection lost", "member", addr.String())
}

func (n *Node) markJoined() {
	if n.joined.CompareAndSwap(false, true) {
		n.logger.Info("node joined", "members", n.members.Size())
	}
}

// ID returns the node identifier.
func (n *Node) ID() string { return n.id }

// ThisAddress returns the advertised member address. It is zero before Start.
func (n *Node) ThisAddress() domain.Address { return *n.addr.Load() }

// IsActive reports whether the node accepts work.
func (n *Node) IsActive() bool { return n.active.Load() }

// Joined reports whether the join phase is over.
func (n *Node) Joined() bool { return n.joined.Load() }

// MemberJoined runs on the io lane after a member was registered.
func (n *Node) MemberJoined(addr domain.Address) {
	n.failed.Delete(addr)
	n.markJoined()
}

// FailedConnection records an outbound failure seen while joining.
func (n *Node) FailedConnection(addr domain.Address) {
	n.failed.Set(addr, time.Now())
	n.logger.Warn("connection to member failed during join", "member", addr.String())
}

// FailedConnections returns the addresses that could not be reached while
// joining and have not registered since.
func (n *Node) FailedConnections() []domain.Address {
	out := n.failed.Keys()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Terminate escalates a fatal error. Only the first call has an effect.
func (n *Node) Terminate(err error) {
	n.terminateOnce.Do(func() {
		n.logger.Error("terminating node", "error", err)
		if n.onTerminate != nil {
			n.onTerminate(err)
			return
		}
		go n.Shutdown(shutdown.WithMode(context.Background(), shutdown.Immediate))
	})
}

// Objects returns the distributed object registry.
func (n *Node) Objects() *objects.Registry { return n.objects }

// Members returns the registered members.
func (n *Node) Members() []*domain.Member { return n.members.Members() }

// MemberAddresses returns the addresses of the registered members.
func (n *Node) MemberAddresses() []domain.Address {
	members := n.members.Members()
	out := make([]domain.Address, len(members))
	for i, m := range members {
		out[i] = m.Address
	}
	return out
}

// PendingTasks returns the io lane depth.
func (n *Node) PendingTasks() int { return n.svc.PendingTasks() }

// MemberCount implements metric.NodeState.
func (n *Node) MemberCount() int { return n.members.Size() }

// PendingIOTasks implements metric.NodeState.
func (n *Node) PendingIOTasks() int { return n.svc.PendingTasks() }

// Active implements metric.NodeState.
func (n *Node) Active() bool { return n.active.Load() }

// Engine returns the engine, for registering opcode handlers.
func (n *Node) Engine() *engine.Engine { return n.engine }

// Cluster returns the member connection server.
func (n *Node) Cluster() *clusterserver.Server { return n.cluster }

// Service returns the transport service.
func (n *Node) Service() *transport.Service { return n.svc }

// CommandAddr returns the bound command server address, nil when disabled.
func (n *Node) CommandAddr() net.Addr { return n.cmdAddr }

// AdminAddr returns the bound admin server address, nil when disabled.
func (n *Node) AdminAddr() net.Addr { return n.adminAddr }
