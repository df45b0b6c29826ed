package clusterserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/telemetry/logger"
	"github.com/yndnr/gridmesh/pkg/cmap"
)

// Gossip tracks cluster membership with the memberlist protocol. Each node
// publishes its member address in the gossip metadata; join and leave
// events are reported with that address.
type Gossip struct {
	nodeID     string
	memberList *memberlist.Memberlist
	logger     *slog.Logger
	shutdown   atomic.Bool

	// gossip node name -> member address, for leave events
	known *cmap.Map[string, domain.Address]

	onJoin  func(addr domain.Address)
	onLeave func(addr domain.Address)
}

// GossipConfig configures a Gossip instance.
type GossipConfig struct {
	// NodeID is the gossip node name. It must be unique in the cluster.
	NodeID string

	BindAddr string
	BindPort int

	// MemberAddr is this node's member address, published to peers.
	MemberAddr domain.Address

	// OnJoin and OnLeave receive the member address of a remote node.
	// They run on memberlist goroutines and must not block.
	OnJoin  func(addr domain.Address)
	OnLeave func(addr domain.Address)

	Logger *slog.Logger
}

type nodeMetadata struct {
	MemberAddr string `json:"member_addr"`
}

// NewGossip starts the gossip listener. Call Join to contact seeds.
func NewGossip(cfg GossipConfig) (*Gossip, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	meta, err := json.Marshal(nodeMetadata{MemberAddr: cfg.MemberAddr.String()})
	if err != nil {
		return nil, fmt.Errorf("encode gossip metadata: %w", err)
	}

	g := &Gossip{
		nodeID:  cfg.NodeID,
		logger:  cfg.Logger.With("component", "gossip"),
		known:   cmap.NewString[domain.Address](),
		onJoin:  cfg.OnJoin,
		onLeave: cfg.OnLeave,
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeID
	if cfg.BindAddr != "" {
		mlConfig.BindAddr = cfg.BindAddr
	}
	mlConfig.BindPort = cfg.BindPort
	mlConfig.AdvertisePort = cfg.BindPort
	mlConfig.Delegate = &metadataDelegate{meta: meta}
	mlConfig.Events = &eventDelegate{gossip: g}
	mlConfig.Logger = logger.StdLogger(g.logger, "memberlist")

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	g.memberList = ml

	g.logger.Info("gossip started",
		"node_id", cfg.NodeID,
		"addr", g.LocalAddr(),
		"member_addr", cfg.MemberAddr.String())
	return g, nil
}

// Join contacts the seeds. It succeeds when at least one seed answered.
func (g *Gossip) Join(seeds []string) (int, error) {
	if len(seeds) == 0 {
		g.logger.Info("no gossip seeds, running as first node")
		return 0, nil
	}
	n, err := g.memberList.Join(seeds)
	if err != nil {
		return n, fmt.Errorf("join seed nodes: %w", err)
	}
	g.logger.Info("joined cluster", "seed_nodes", seeds, "joined_count", n)
	return n, nil
}

// LocalAddr returns the gossip address of this node.
func (g *Gossip) LocalAddr() string {
	n := g.memberList.LocalNode()
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Members returns the member addresses of the live gossip nodes, including
// this one.
func (g *Gossip) Members() []domain.Address {
	nodes := g.memberList.Members()
	out := make([]domain.Address, 0, len(nodes))
	for _, n := range nodes {
		if addr, ok := g.memberAddress(n); ok {
			out = append(out, addr)
		}
	}
	return out
}

// Leave broadcasts this node's departure and waits up to timeout for it to
// propagate.
func (g *Gossip) Leave(timeout time.Duration) error {
	if g.shutdown.Load() {
		return nil
	}
	if err := g.memberList.Leave(timeout); err != nil {
		g.logger.Error("failed to leave cluster", "error", err)
		return err
	}
	g.logger.Info("left cluster")
	return nil
}

// Shutdown stops gossip without notifying peers. Safe to call twice.
func (g *Gossip) Shutdown() error {
	if !g.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if err := g.memberList.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	g.logger.Info("gossip shutdown complete")
	return nil
}

func (g *Gossip) memberAddress(n *memberlist.Node) (domain.Address, bool) {
	var meta nodeMetadata
	if err := json.Unmarshal(n.Meta, &meta); err != nil || meta.MemberAddr == "" {
		return domain.Address{}, false
	}
	addr, err := domain.ParseAddress(meta.MemberAddr)
	if err != nil {
		return domain.Address{}, false
	}
	return addr, true
}

type eventDelegate struct {
	gossip *Gossip
}

func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	g := e.gossip
	if node.Name == g.nodeID {
		return
	}
	addr, ok := g.memberAddress(node)
	if !ok {
		g.logger.Warn("node joined without member address, ignoring",
			"node_id", node.Name,
			"gossip_addr", node.Address())
		return
	}
	g.known.Set(node.Name, addr)
	g.logger.Info("node joined",
		"node_id", node.Name,
		"gossip_addr", node.Address(),
		"member_addr", addr.String())
	if g.onJoin != nil {
		g.onJoin(addr)
	}
}

func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	g := e.gossip
	addr, ok := g.known.Pop(node.Name)
	if !ok {
		return
	}
	g.logger.Info("node left",
		"node_id", node.Name,
		"member_addr", addr.String())
	if g.onLeave != nil {
		g.onLeave(addr)
	}
}

func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	e.gossip.logger.Debug("node updated",
		"node_id", node.Name,
		"gossip_addr", node.Address())
}

// metadataDelegate publishes the member address. The other delegate hooks
// are unused.
type metadataDelegate struct {
	meta []byte
}

func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return m.meta[:limit]
	}
	return m.meta
}

func (m *metadataDelegate) NotifyMsg([]byte)                           {}
func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (m *metadataDelegate) LocalState(join bool) []byte                { return nil }
func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool)     {}
