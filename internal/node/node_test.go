package node

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/infra/shutdown"
	"github.com/yndnr/gridmesh/internal/server/commandserver"
	"github.com/yndnr/gridmesh/internal/server/config"
)

func testConfig() *config.ServerConfig {
	cfg := config.Default()
	cfg.Network.BindAddr = "127.0.0.1"
	cfg.Network.Port = 0
	cfg.Socket.BindAny = false
	cfg.IO.ConnectTimeout = time.Second
	cfg.Server.Command.Addr = "127.0.0.1:0"
	cfg.Server.Admin.Addr = "127.0.0.1:0"
	return cfg
}

func newNode(t *testing.T, mutate func(*config.ServerConfig)) *Node {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	n, err := New(Options{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return n
}

func startNode(t *testing.T, mutate func(*config.ServerConfig)) *Node {
	t.Helper()
	n := newNode(t, mutate)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		n.Shutdown(ctx)
	})
	return n
}

func hasMember(n *Node, addr domain.Address) bool {
	for _, a := range n.MemberAddresses() {
		if a.Equal(addr) {
			return true
		}
	}
	return false
}

func TestNew_GeneratesNodeID(t *testing.T) {
	n := newNode(t, nil)
	assert.Contains(t, n.ID(), config.NodeIDPrefix)
	assert.True(t, n.ThisAddress().IsZero())
	assert.False(t, n.IsActive())
	assert.False(t, n.Joined())
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNode_StartAndShutdown(t *testing.T) {
	n := newNode(t, func(cfg *config.ServerConfig) {
		cfg.Node.ID = "gmnode-a"
	})
	require.NoError(t, n.Start(context.Background()))

	assert.False(t, n.ThisAddress().IsZero())
	assert.Equal(t, "127.0.0.1", n.ThisAddress().Host)
	assert.True(t, n.IsActive())
	assert.True(t, n.Joined(), "a node without discovery is joined after start")
	require.NotNil(t, n.CommandAddr())
	require.NotNil(t, n.AdminAddr())

	resp, err := http.Get("http://" + n.AdminAddr().String() + "/health")
	require.NoError(t, err)
	var body struct {
		Data struct {
			Status string `json:"status"`
			NodeID string `json:"node_id"`
			Joined bool   `json:"joined"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "gmnode-a", body.Data.NodeID)
	assert.True(t, body.Data.Joined)

	assert.ErrorContains(t, n.Start(context.Background()), "already started")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Shutdown(ctx))
	assert.False(t, n.IsActive())
	assert.NoError(t, n.Shutdown(ctx), "second Shutdown is a no-op")

	_, err = commandserver.Dial(ctx, n.CommandAddr().String(), 200*time.Millisecond)
	assert.Error(t, err, "command server should be closed")
}

func TestNode_CommandServerAnswersBuiltins(t *testing.T) {
	n := startNode(t, func(cfg *config.ServerConfig) {
		cfg.Server.Admin.Enabled = false
	})
	assert.Nil(t, n.AdminAddr())

	ctx := context.Background()
	c, err := commandserver.Dial(ctx, n.CommandAddr().String(), time.Second)
	require.NoError(t, err)
	defer c.Close()

	reply, err := c.Do(ctx, "try-set-count", "gate", "2")
	require.NoError(t, err)
	assert.True(t, reply.OK)

	reply, err = c.Do(ctx, "get-count", "gate")
	require.NoError(t, err)
	assert.Equal(t, commandserver.Reply{OK: true, Payload: "2"}, reply)
	assert.Equal(t, 2, n.Objects().CountDownLatch("gate").Count())
}

func TestNode_MembersConnect(t *testing.T) {
	a := startNode(t, nil)
	b := startNode(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := b.Cluster().Connect(ctx, a.ThisAddress())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hasMember(a, b.ThisAddress()) && hasMember(b, a.ThisAddress())
	}, 5*time.Second, 20*time.Millisecond)

	c, err := commandserver.Dial(ctx, a.CommandAddr().String(), time.Second)
	require.NoError(t, err)
	defer c.Close()
	reply, err := c.Do(ctx, "members")
	require.NoError(t, err)
	assert.Contains(t, reply.Payload, b.ThisAddress().String())
}

func TestNode_GossipJoin(t *testing.T) {
	gossip := func(cfg *config.ServerConfig) {
		cfg.Discovery.Gossip.Enabled = true
		cfg.Discovery.Gossip.BindAddr = "127.0.0.1"
		cfg.Discovery.Gossip.BindPort = 0
	}
	a := startNode(t, gossip)
	require.NotNil(t, a.gossip)

	b := startNode(t, func(cfg *config.ServerConfig) {
		gossip(cfg)
		cfg.Discovery.Gossip.Seeds = []string{a.gossip.LocalAddr()}
	})

	require.Eventually(t, func() bool {
		return hasMember(a, b.ThisAddress()) && hasMember(b, a.ThisAddress())
	}, 10*time.Second, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		return a.Cluster().Connections() > 0 && b.Cluster().Connections() > 0
	}, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, b.Shutdown(ctx))

	require.Eventually(t, func() bool {
		return !hasMember(a, b.ThisAddress())
	}, 10*time.Second, 50*time.Millisecond, "a graceful leave removes the member")
}

func TestNode_FailedConnectionsWhileJoining(t *testing.T) {
	n := newNode(t, nil)
	peer := domain.NewAddress("10.0.0.9", 5701)

	n.Service().OnFailedConnection(peer)
	assert.Equal(t, []domain.Address{peer}, n.FailedConnections())

	n.MemberJoined(peer)
	assert.Empty(t, n.FailedConnections())
	assert.True(t, n.Joined())

	n.Service().OnFailedConnection(domain.NewAddress("10.0.0.10", 5701))
	assert.Empty(t, n.FailedConnections(), "failures after the join are not recorded")
}

func TestNode_TerminateEscalatesOnce(t *testing.T) {
	terminated := make(chan error, 2)
	n, err := New(Options{
		Config:      testConfig(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnTerminate: func(err error) { terminated <- err },
	})
	require.NoError(t, err)

	cause := errors.New("accept failed")
	n.Service().OnFatalError(cause)
	n.Service().OnFatalError(errors.New("second"))

	select {
	case got := <-terminated:
		assert.Equal(t, cause, got)
	case <-time.After(time.Second):
		t.Fatal("OnTerminate was not called")
	}
	assert.Len(t, terminated, 0)
}

func TestNode_TerminateWithoutHookShutsDown(t *testing.T) {
	n := startNode(t, func(cfg *config.ServerConfig) {
		cfg.Server.Admin.Enabled = false
	})
	n.Terminate(errors.New("fatal"))

	require.Eventually(t, func() bool {
		return !n.IsActive()
	}, 5*time.Second, 20*time.Millisecond)
	select {
	case <-n.ioLane.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("io lane did not stop")
	}
}

func TestNode_ImmediateShutdownSkipsDrain(t *testing.T) {
	n := startNode(t, nil)
	ctx := shutdown.WithMode(context.Background(), shutdown.Immediate)
	require.NoError(t, n.Shutdown(ctx))
	assert.False(t, n.IsActive())
}

func TestNode_SpawnRefusedAfterShutdown(t *testing.T) {
	n := startNode(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, n.Shutdown(ctx))

	assert.False(t, n.spawn(func() { t.Error("spawned after shutdown") }))
	n.goConnect(domain.NewAddress("127.0.0.1", 1))
}

func TestNode_SpawnDuringShutdown(t *testing.T) {
	n := startNode(t, nil)
	peer := domain.NewAddress("127.0.0.1", 1)

	var (
		spawned  atomic.Int32
		finished atomic.Int32
		wg       sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if n.spawn(func() { finished.Add(1) }) {
					spawned.Add(1)
				}
				n.goConnect(peer)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, n.Shutdown(ctx))
	wg.Wait()

	// Every goroutine admitted before Shutdown flipped stopping was waited for.
	n.wg.Wait()
	assert.Equal(t, spawned.Load(), finished.Load())
}
