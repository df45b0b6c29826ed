package connection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/server/commandserver"
	"github.com/yndnr/gridmesh/internal/server/config"
	"github.com/yndnr/gridmesh/internal/server/httpserver/handler"
)

type fakeNode struct {
	active  bool
	members []*domain.Member
}

func (n *fakeNode) ID() string                  { return "gmnode-cli" }
func (n *fakeNode) ThisAddress() domain.Address { return domain.NewAddress("10.0.0.1", 5701) }
func (n *fakeNode) IsActive() bool              { return n.active }
func (n *fakeNode) Joined() bool                { return true }
func (n *fakeNode) Members() []*domain.Member   { return n.members }
func (n *fakeNode) PendingTasks() int           { return 0 }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func adminServer(t *testing.T, node handler.Node) string {
	t.Helper()
	srv := httptest.NewServer(handler.New(node, discard()))
	t.Cleanup(srv.Close)
	return srv.URL
}

type echoHandler struct{}

func (echoHandler) HandleClientCommand(_ context.Context, req *domain.CommandRequest) *domain.CommandResponse {
	if req.Operation == "fail" {
		return domain.Failure(errors.New("boom"))
	}
	return domain.Success(req.Operation + ":" + strings.Join(req.Args, ","))
}

func commandServer(t *testing.T) (*commandserver.Server, string) {
	t.Helper()
	srv := commandserver.New(config.CommandConfig{Addr: "127.0.0.1:0", MaxConnections: 8}, echoHandler{}, discard())
	addr, err := srv.Listen()
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, addr.String()
}

func TestAdminClient_Health(t *testing.T) {
	c := NewAdminClient(adminServer(t, &fakeNode{active: true}), time.Second)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "gmnode-cli", h.NodeID)
}

func TestAdminClient_NotReady(t *testing.T) {
	c := NewAdminClient(adminServer(t, &fakeNode{}), time.Second)
	_, err := c.Ready(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.Status)
	assert.Equal(t, domain.ErrNodeInactive.Code, apiErr.Code)
}

func TestAdminClient_Members(t *testing.T) {
	node := &fakeNode{active: true, members: []*domain.Member{
		domain.NewMember(domain.NewAddress("10.0.0.2", 5701)),
	}}
	c := NewAdminClient(adminServer(t, node), time.Second)

	m, err := c.Members(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:5701", m.Self)
	require.Len(t, m.Members, 1)
	assert.Equal(t, "10.0.0.2:5701", m.Members[0].Address)
}

func TestNewAdminClient_AddsScheme(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:5080", NewAdminClient("127.0.0.1:5080", time.Second).BaseURL())
	assert.Equal(t, "https://admin.local", NewAdminClient("https://admin.local/", time.Second).BaseURL())
}

func TestSession_Do(t *testing.T) {
	_, addr := commandServer(t)
	s := NewSession(addr, "127.0.0.1:1", time.Second)
	defer s.Close()

	reply, err := s.Do(context.Background(), "get-count", "gate")
	require.NoError(t, err)
	assert.Equal(t, commandserver.Reply{OK: true, Payload: "get-count:gate"}, reply)

	reply, err = s.Do(context.Background(), "fail")
	require.NoError(t, err, "a failure reply is not a transport error")
	assert.False(t, reply.OK)
	assert.Equal(t, "boom", reply.Payload)
}

func TestSession_RedialsAfterError(t *testing.T) {
	srv, addr := commandServer(t)
	s := NewSession(addr, "", time.Second)
	defer s.Close()

	_, err := s.Do(context.Background(), "members")
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))
	_, err = s.Do(context.Background(), "members")
	require.Error(t, err)

	_, addr2 := commandServer(t)
	s.commandAddr = addr2
	reply, err := s.Do(context.Background(), "members")
	require.NoError(t, err)
	assert.True(t, reply.OK)
}

func TestSession_DialFailure(t *testing.T) {
	s := NewSession("127.0.0.1:1", "", 200*time.Millisecond)
	_, err := s.Do(context.Background(), "members")
	assert.ErrorContains(t, err, "connect to 127.0.0.1:1")
	assert.NoError(t, s.Close())
}
