package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yndnr/gridmesh/internal/server/commandserver"
)

// Session is the CLI's link to one node. The command connection is dialed
// on first use and redialed on the next call after a transport error.
type Session struct {
	commandAddr string
	timeout     time.Duration
	admin       *AdminClient

	mu     sync.Mutex
	client *commandserver.Client
}

// NewSession creates a session for the node at the given command and admin
// addresses. Nothing is dialed yet.
func NewSession(commandAddr, adminAddr string, timeout time.Duration) *Session {
	return &Session{
		commandAddr: commandAddr,
		timeout:     timeout,
		admin:       NewAdminClient(adminAddr, timeout),
	}
}

// CommandAddr returns the command server address.
func (s *Session) CommandAddr() string {
	return s.commandAddr
}

// Admin returns the admin HTTP client.
func (s *Session) Admin() *AdminClient {
	return s.admin
}

// Do runs one command. A failure reply is returned as a Reply with OK
// false, not as an error.
func (s *Session) Do(ctx context.Context, operation string, args ...string) (commandserver.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		c, err := commandserver.Dial(ctx, s.commandAddr, s.timeout)
		if err != nil {
			return commandserver.Reply{}, fmt.Errorf("connect to %s: %w", s.commandAddr, err)
		}
		s.client = c
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := s.client.Do(ctx, operation, args...)
	if err != nil {
		s.client.Close()
		s.client = nil
		return commandserver.Reply{}, err
	}
	return reply, nil
}

// Close closes the command connection, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
