package clusterserver

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

type recordingHandler struct {
	mu      sync.Mutex
	seen    map[string][]int
	fatals  []error
	panicOn string
}

func (h *recordingHandler) HandleMemberPacket(p *domain.Packet) {
	if string(p.Payload) == h.panicOn {
		panic("handler exploded")
	}
	n, _ := strconv.Atoi(string(p.Payload))
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen[p.Conn.ID()] = append(h.seen[p.Conn.ID()], n)
}

func (h *recordingHandler) OnFatalError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatals = append(h.fatals, err)
}

type idConn struct {
	domain.Connection
	id string
}

func (c idConn) ID() string { return c.id }

func TestWorkers_PerConnectionOrder(t *testing.T) {
	h := &recordingHandler{seen: map[string][]int{}}
	w := newWorkers(4, h)
	w.start()

	conns := []idConn{{id: "a"}, {id: "b"}, {id: "c"}, {id: "d"}, {id: "e"}}
	for i := 0; i < 200; i++ {
		for _, c := range conns {
			w.dispatch(&domain.Packet{Conn: c, Payload: []byte(strconv.Itoa(i))})
		}
	}
	w.stop()

	for _, c := range conns {
		got := h.seen[c.id]
		require.Len(t, got, 200, c.id)
		for i, n := range got {
			assert.Equal(t, i, n, "conn %s out of order", c.id)
		}
	}
}

func TestWorkers_StableAssignment(t *testing.T) {
	w := newWorkers(3, &recordingHandler{})
	assert.Equal(t, w.index("conn-1"), w.index("conn-1"))
	assert.Less(t, w.index("conn-2"), 3)
	assert.Len(t, newWorkers(0, nil).queues, 1)
}

func TestWorkers_PanicIsFatal(t *testing.T) {
	h := &recordingHandler{seen: map[string][]int{}, panicOn: "boom"}
	w := newWorkers(1, h)
	w.start()

	w.dispatch(&domain.Packet{Conn: idConn{id: "a"}, Payload: []byte("boom")})
	w.dispatch(&domain.Packet{Conn: idConn{id: "a"}, Payload: []byte("1")})
	w.stop()

	require.Len(t, h.fatals, 1)
	assert.Contains(t, h.fatals[0].Error(), "handler exploded")
	assert.Equal(t, []int{1}, h.seen["a"], "the worker survives a panicking packet")
}
