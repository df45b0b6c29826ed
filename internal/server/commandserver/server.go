package commandserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/server/config"
	"github.com/yndnr/gridmesh/internal/telemetry/logger"
	"github.com/yndnr/gridmesh/pkg/cmap"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 30 * time.Second
)

// Handler answers client commands.
type Handler interface {
	HandleClientCommand(ctx context.Context, req *domain.CommandRequest) *domain.CommandResponse
}

// Server is the client command server.
type Server struct {
	cfg     config.CommandConfig
	handler Handler
	logger  *slog.Logger

	listener net.Listener
	running  atomic.Bool
	active   atomic.Int64
	conns    *cmap.Map[string, net.Conn]
	limiters *cmap.Map[string, *rate.Limiter]
	wg       sync.WaitGroup
}

// New creates a command server.
func New(cfg config.CommandConfig, handler Handler, l *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		handler:  handler,
		logger:   logger.OrDefault(l).With("component", "commandserver"),
		conns:    cmap.NewString[net.Conn](),
		limiters: cmap.NewString[*rate.Limiter](),
	}
}

// Listen binds the command listener. It returns the bound address.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	s.logger.Info("command server listening", "address", ln.Addr().String())
	return ln.Addr(), nil
}

// Start runs the accept loop. Listen must have succeeded.
func (s *Server) Start(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("commandserver: Start before Listen")
	}
	s.running.Store(true)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx); err != nil && s.running.Load() {
			s.logger.Error("command accept loop failed", "error", err)
		}
	}()
	return nil
}

// Shutdown closes the listener and all client connections and waits for
// in-flight commands.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	var firstErr error
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		firstErr = err
	}
	for _, c := range s.conns.Values() {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return firstErr
}

// ActiveConnections returns the number of connected clients.
func (s *Server) ActiveConnections() int {
	return int(s.active.Load())
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		c, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}

		if limit := s.cfg.MaxConnections; limit > 0 && s.active.Load() >= int64(limit) {
			s.logger.Warn("too many client connections", "remote", c.RemoteAddr().String(), "max", limit)
			s.reject(c, "ERR too many connections")
			continue
		}

		s.active.Add(1)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.active.Add(-1)
			s.serveConn(ctx, c)
		}()
	}
}

func (s *Server) reject(c net.Conn, msg string) {
	_ = c.SetWriteDeadline(time.Now().Add(time.Second))
	bw := bufio.NewWriter(c)
	_ = WriteError(bw, msg)
	_ = bw.Flush()
	c.Close()
}

func (s *Server) serveConn(ctx context.Context, c net.Conn) {
	id := ulid.Make().String()
	s.conns.Set(id, c)
	defer s.conns.Delete(id)
	defer c.Close()

	ctx = logger.WithRequestID(ctx, id)
	remote := c.RemoteAddr().String()
	limiter := s.limiter(remote)
	br := bufio.NewReader(c)
	bw := bufio.NewWriter(c)

	idleTimeout := s.cfg.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = config.DefaultCommandIdleTimeout
	}

	for {
		// Idle clients may wait between commands; once a command starts
		// it must arrive within readTimeout.
		if err := c.SetReadDeadline(time.Now().Add(idleTimeout)); err != nil {
			return
		}
		if _, err := br.Peek(1); err != nil {
			s.logReadError(remote, err)
			return
		}
		if err := c.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		args, err := ReadCommand(br)
		if err != nil {
			if errors.Is(err, ErrLimitExceeded) {
				s.logger.Warn("protocol limit exceeded", "remote", remote, "error", err)
				s.writeAndFlush(c, bw, func() error { return WriteError(bw, "ERR protocol limit exceeded") })
				return
			}
			if errors.Is(err, ErrProtocol) {
				s.writeAndFlush(c, bw, func() error { return WriteError(bw, "ERR "+err.Error()) })
				return
			}
			s.logReadError(remote, err)
			return
		}
		if len(args) == 0 {
			if !s.writeAndFlush(c, bw, func() error { return WriteError(bw, "ERR no command") }) {
				return
			}
			continue
		}

		quit := false
		var reply func() error
		switch strings.ToUpper(args[0]) {
		case "PING":
			reply = func() error { return WriteSimpleString(bw, "PONG") }
		case "QUIT":
			quit = true
			reply = func() error { return WriteSimpleString(bw, "OK") }
		default:
			if limiter != nil && !limiter.Allow() {
				err := domain.ErrRateLimited.WithDetails(remote)
				reply = func() error { return WriteError(bw, "ERR "+err.Error()) }
				break
			}
			resp := s.handler.HandleClientCommand(ctx, &domain.CommandRequest{Operation: args[0], Args: args[1:]})
			reply = func() error { return writeResponse(bw, resp) }
		}

		if !s.writeAndFlush(c, bw, reply) || quit {
			return
		}
	}
}

func writeResponse(w *bufio.Writer, resp *domain.CommandResponse) error {
	if resp == nil {
		return WriteError(w, "ERR no response")
	}
	if resp.OK() {
		return WriteSimpleString(w, resp.Payload)
	}
	return WriteError(w, "ERR "+resp.Payload)
}

func (s *Server) writeAndFlush(c net.Conn, bw *bufio.Writer, write func() error) bool {
	if err := c.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return false
	}
	if err := write(); err != nil {
		return false
	}
	return bw.Flush() == nil
}

func (s *Server) logReadError(remote string, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		s.logger.Debug("client connection timed out", "remote", remote)
		return
	}
	s.logger.Debug("client connection read error", "remote", remote, "error", err)
}

// limiter returns the rate limiter of the client IP, nil when rate
// limiting is off.
func (s *Server) limiter(remote string) *rate.Limiter {
	if s.cfg.RateLimit <= 0 {
		return nil
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	burst := s.cfg.RateBurst
	if burst <= 0 {
		burst = int(s.cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}
	l, _ := s.limiters.GetOrCreate(host, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)
	})
	return l
}
