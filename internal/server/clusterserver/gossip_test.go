package clusterserver

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

type gossipEvents struct {
	mu     sync.Mutex
	joined []domain.Address
	left   []domain.Address
}

func (e *gossipEvents) join(addr domain.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.joined = append(e.joined, addr)
}

func (e *gossipEvents) leave(addr domain.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.left = append(e.left, addr)
}

func (e *gossipEvents) snapshot() (joined, left []domain.Address) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Address(nil), e.joined...), append([]domain.Address(nil), e.left...)
}

func newTestGossip(t *testing.T, name string, member domain.Address, events *gossipEvents) *Gossip {
	t.Helper()
	g, err := NewGossip(GossipConfig{
		NodeID:     name,
		BindAddr:   "127.0.0.1",
		BindPort:   0,
		MemberAddr: member,
		OnJoin:     events.join,
		OnLeave:    events.leave,
		Logger:     discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { g.Shutdown() })
	return g
}

func TestGossip_LocalMetadata(t *testing.T) {
	member := domain.NewAddress("127.0.0.1", 5701)
	events := &gossipEvents{}
	g := newTestGossip(t, "node-a", member, events)

	local := g.memberList.LocalNode()
	assert.Equal(t, "node-a", local.Name)
	var meta nodeMetadata
	require.NoError(t, json.Unmarshal(local.Meta, &meta))
	assert.Equal(t, "127.0.0.1:5701", meta.MemberAddr)

	assert.Equal(t, []domain.Address{member}, g.Members())
	joined, _ := events.snapshot()
	assert.Empty(t, joined, "the local node is not reported as a join")
}

func TestGossip_JoinAndLeave(t *testing.T) {
	memberA := domain.NewAddress("127.0.0.1", 5701)
	memberB := domain.NewAddress("127.0.0.1", 5702)
	eventsA := &gossipEvents{}
	eventsB := &gossipEvents{}

	a := newTestGossip(t, "node-a", memberA, eventsA)
	b := newTestGossip(t, "node-b", memberB, eventsB)

	n, err := b.Join([]string{a.LocalAddr()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Eventually(t, func() bool {
		joined, _ := eventsA.snapshot()
		return len(joined) == 1 && joined[0] == memberB
	}, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		joined, _ := eventsB.snapshot()
		return len(joined) == 1 && joined[0] == memberA
	}, 5*time.Second, 20*time.Millisecond)
	assert.ElementsMatch(t, []domain.Address{memberA, memberB}, a.Members())

	require.NoError(t, b.Leave(time.Second))
	require.Eventually(t, func() bool {
		_, left := eventsA.snapshot()
		return len(left) == 1 && left[0] == memberB
	}, 5*time.Second, 20*time.Millisecond)
}

func TestGossip_JoinWithoutSeeds(t *testing.T) {
	g := newTestGossip(t, "alone", domain.NewAddress("127.0.0.1", 5701), &gossipEvents{})

	n, err := g.Join(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGossip_ShutdownTwice(t *testing.T) {
	g := newTestGossip(t, "twice", domain.NewAddress("127.0.0.1", 5701), &gossipEvents{})

	require.NoError(t, g.Shutdown())
	require.NoError(t, g.Shutdown())
	assert.NoError(t, g.Leave(time.Second), "leave after shutdown is a no-op")
}
