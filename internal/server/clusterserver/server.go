package clusterserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/infra/oom"
	"github.com/yndnr/gridmesh/internal/infra/sockopt"
	"github.com/yndnr/gridmesh/internal/server/transport"
	"github.com/yndnr/gridmesh/internal/telemetry/logger"
	"github.com/yndnr/gridmesh/pkg/cmap"
)

const (
	maxAcceptBackoff = time.Second
	heartbeatTimeout = 5 * time.Second
)

// Server accepts and dials member connections for one node.
type Server struct {
	svc         *transport.Service
	logger      *slog.Logger
	codec       *Codec
	tlsServer   *tls.Config
	tlsClient   *tls.Config
	interceptor Interceptor
	dialer      *dialer
	monitor     *monitor
	workers     *workers

	listener net.Listener
	addr     domain.Address
	gossip   string

	// conn ID -> connection, every live connection
	conns *cmap.Map[string, *memberConn]
	// member address -> the connection packets to that member are sent on
	endpoints *cmap.Map[domain.Address, *memberConn]

	connecting singleflight.Group
	running    atomic.Bool
	stop       chan struct{}
	wg         sync.WaitGroup
}

// New creates a member server for svc. Encryption, TLS and interception
// are resolved from the configuration snapshot here, so bad settings fail
// construction.
func New(svc *transport.Service) (*Server, error) {
	if svc.AsymmetricEncryptionConfig().Enabled {
		return nil, domain.ErrUnsupported.WithDetails("asymmetric encryption")
	}
	cipher, err := svc.SymmetricCipher()
	if err != nil {
		return nil, fmt.Errorf("symmetric encryption: %w", err)
	}
	memberTLS, err := svc.MemberTLS()
	if err != nil {
		return nil, fmt.Errorf("member tls: %w", err)
	}
	interceptor, err := NewInterceptor(svc.SocketInterceptorConfig())
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:         svc,
		logger:      svc.Logger().With("component", "clusterserver"),
		codec:       NewCodec(cipher, svc.MaxFrameSize()),
		interceptor: interceptor,
		dialer: &dialer{
			ports:   svc.OutboundPorts(),
			timeout: svc.ConnectTimeout(),
			opts: sockopt.Options{
				ReuseAddr:     svc.ReuseSocketAddress(),
				ReceiveBuffer: svc.SocketReceiveBufferSize(),
				SendBuffer:    svc.SocketSendBufferSize(),
			},
		},
		workers:   newWorkers(svc.IOThreadCount(), svc),
		conns:     cmap.NewString[*memberConn](),
		endpoints: cmap.New[domain.Address, *memberConn](domain.Address.String),
		stop:      make(chan struct{}),
	}
	if memberTLS != nil {
		s.tlsServer = memberTLS.Server()
		s.tlsClient = memberTLS.Client()
	}
	s.monitor = newMonitor(svc.ConnectionMonitorInterval(), svc.ConnectionMonitorMaxFaults(), svc.RemoveEndpoint, s.logger)
	return s, nil
}

// Bind opens the member listener and returns the address advertised to
// peers. With port auto-increment, the configured port range is tried in
// order.
func (s *Server) Bind() (domain.Address, error) {
	host := s.svc.BindAddress()
	publicHost := s.svc.PublicAddress()
	if s.svc.SocketBindAny() {
		if publicHost == "" && host != "" && !net.ParseIP(host).IsUnspecified() {
			publicHost = host
		}
		host = ""
	}

	lc := net.ListenConfig{
		Control: sockopt.Control(sockopt.Options{
			ReuseAddr:     s.svc.ReuseSocketAddress(),
			ReceiveBuffer: s.svc.SocketReceiveBufferSize(),
			SendBuffer:    s.svc.SocketSendBufferSize(),
		}),
	}

	first := s.svc.SocketPort()
	count := 1
	if s.svc.SocketPortAutoIncrement() && first != 0 && s.svc.SocketPortCount() > 1 {
		count = s.svc.SocketPortCount()
	}

	var (
		ln      net.Listener
		lastErr error
	)
	for port := first; port < first+count; port++ {
		ln, lastErr = lc.Listen(context.Background(), "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, syscall.EADDRINUSE) {
			return domain.Address{}, fmt.Errorf("listen on port %d: %w", port, lastErr)
		}
		s.logger.Debug("member port in use", "port", port)
	}
	if ln == nil {
		return domain.Address{}, fmt.Errorf("no free member port in %d-%d: %w", first, first+count-1, lastErr)
	}

	addr, err := advertiseAddress(publicHost, ln.Addr())
	if err != nil {
		ln.Close()
		return domain.Address{}, err
	}
	if s.tlsServer != nil {
		ln = tls.NewListener(ln, s.tlsServer)
	}
	s.listener = ln
	s.addr = addr
	s.logger.Info("member listener bound", "listen", ln.Addr().String(), "advertise", addr.String(), "tls", s.tlsServer != nil)
	return addr, nil
}

// Addr returns the advertised member address. It is zero before Bind.
func (s *Server) Addr() domain.Address {
	return s.addr
}

// SetGossipAddress sets the gossip address sent in bind handshakes.
func (s *Server) SetGossipAddress(addr string) {
	s.gossip = addr
}

// Start runs the accept loop, the packet workers and the heartbeat loop.
// Bind must have succeeded.
func (s *Server) Start(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("clusterserver: Start before Bind")
	}
	s.running.Store(true)
	s.workers.start()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.acceptLoop(ctx); err != nil && s.running.Load() {
			s.logger.Error("member accept loop failed", "error", err)
			s.svc.OnFatalError(err)
		}
	}()
	go func() {
		defer s.wg.Done()
		s.heartbeatLoop()
	}()
	return nil
}

// Shutdown closes the listener and every member connection, then waits for
// the connection goroutines and drains the packet workers.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	close(s.stop)

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
	s.workers.stop()
	return firstErr
}

// Connections returns the number of open member connections.
func (s *Server) Connections() int {
	return s.conns.Count()
}

// Connect returns the connection to addr, dialing it when there is none.
// Concurrent calls for one address share a single dial.
func (s *Server) Connect(ctx context.Context, addr domain.Address) (domain.Connection, error) {
	if err := s.svc.ShouldConnectTo(addr); err != nil {
		return nil, err
	}
	if c, ok := s.endpoints.Get(addr); ok && !c.isClosed() {
		return c, nil
	}
	if !s.running.Load() {
		return nil, domain.ErrNodeInactive
	}

	v, err, _ := s.connecting.Do(addr.String(), func() (any, error) {
		if c, ok := s.endpoints.Get(addr); ok && !c.isClosed() {
			return c, nil
		}
		c, err := s.dial(ctx, addr)
		if err != nil {
			s.logger.Debug("member connection failed", "endpoint", addr.String(), "error", err)
			s.svc.OnFailedConnection(addr)
			s.monitor.onError(addr, err)
			return nil, err
		}
		s.monitor.reset(addr)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*memberConn), nil
}

// Send writes one frame to the member at addr, connecting if needed. A
// failed write closes the connection.
func (s *Server) Send(ctx context.Context, addr domain.Address, opcode uint16, payload []byte) error {
	conn, err := s.Connect(ctx, addr)
	if err != nil {
		return err
	}
	c := conn.(*memberConn)
	if err := c.writeFrame(ctx, opcode, payload); err != nil {
		c.Close()
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	return nil
}

func (s *Server) dial(ctx context.Context, addr domain.Address) (*memberConn, error) {
	timeout := s.svc.ConnectTimeout()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := s.dialer.dial(ctx, addr.String())
	if err != nil {
		return nil, err
	}
	if err := sockopt.TuneTCP(raw, s.svc.SocketKeepAlive(), s.svc.SocketNoDelay(), s.svc.SocketLinger()); err != nil {
		s.logger.Debug("tune member socket", "endpoint", addr.String(), "error", err)
	}

	conn := raw
	if s.tlsClient != nil {
		cfg := s.tlsClient.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = addr.Host
		}
		tc := tls.Client(raw, cfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			raw.Close()
			return nil, fmt.Errorf("tls handshake: %w", err)
		}
		conn = tc
	}

	c := newMemberConn(conn, s.codec, false)
	c.setEndpoint(addr)
	bind := BindRequest{Address: s.addr, Gossip: s.gossip}
	if err := c.writeFrame(ctx, domain.OpcodeBind, bind.Marshal()); err != nil {
		c.Close()
		return nil, fmt.Errorf("bind handshake: %w", err)
	}

	if !s.track(c) {
		c.Close()
		return nil, domain.ErrNodeInactive
	}
	s.endpoints.Set(addr, c)
	s.svc.Metrics().ConnectionsOpened.WithLabelValues("outbound").Inc()
	s.logger.Debug("member connection established", "endpoint", addr.String(), "conn", c.id)

	s.svc.RegisterEndpoint(addr)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(c)
	}()
	return c, nil
}

func (s *Server) acceptLoop(ctx context.Context) error {
	var backoff time.Duration
	for {
		raw, err := s.listener.Accept()
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
			switch {
			case oom.IsExhaustion(err):
				s.svc.OnOutOfMemory(err)
			case errors.As(err, &netErr) && netErr.Timeout():
			default:
				return err
			}
			backoff = nextBackoff(backoff)
			s.logger.Warn("member accept failed, backing off", "error", err, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-s.stop:
				return nil
			}
			continue
		}
		backoff = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.accept(raw)
		}()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > maxAcceptBackoff {
		d = maxAcceptBackoff
	}
	return d
}

// accept runs the bind handshake of an inbound connection and then serves
// it on the calling goroutine.
func (s *Server) accept(raw net.Conn) {
	defer s.recoverFatal("accept")

	if s.interceptor != nil {
		if err := s.interceptor.Allow(raw.RemoteAddr()); err != nil {
			s.logger.Warn("member connection rejected", "remote", raw.RemoteAddr().String(), "error", err)
			raw.Close()
			return
		}
	}
	if err := sockopt.TuneTCP(unwrapTLS(raw), s.svc.SocketKeepAlive(), s.svc.SocketNoDelay(), s.svc.SocketLinger()); err != nil {
		s.logger.Debug("tune member socket", "remote", raw.RemoteAddr().String(), "error", err)
	}

	c := newMemberConn(raw, s.codec, true)
	if !s.track(c) {
		c.Close()
		return
	}
	s.svc.Metrics().ConnectionsOpened.WithLabelValues("inbound").Inc()

	if err := s.handshake(c); err != nil {
		s.logger.Debug("member handshake failed", "remote", raw.RemoteAddr().String(), "error", err)
		s.untrack(c)
		c.Close()
		return
	}

	s.serve(c)
}

func (s *Server) handshake(c *memberConn) error {
	if timeout := s.svc.ConnectTimeout(); timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
		defer c.conn.SetReadDeadline(time.Time{})
	}

	opcode, payload, err := c.readFrame()
	if err != nil {
		return err
	}
	if opcode != domain.OpcodeBind {
		return domain.ErrConnectionRejected.WithDetails(fmt.Sprintf("expected bind, got opcode %d", opcode))
	}
	bind, err := UnmarshalBindRequest(payload)
	if err != nil {
		return err
	}
	if bind.Address.Equal(s.svc.ThisAddress()) {
		return domain.ErrConnectToSelf.WithDetails(bind.Address.String())
	}

	c.setEndpoint(bind.Address)
	s.endpoints.SetIfAbsent(bind.Address, c)
	s.logger.Debug("member bound", "endpoint", bind.Address.String(), "gossip", bind.Gossip, "conn", c.id)
	s.svc.RegisterEndpoint(bind.Address)
	return nil
}

// serve reads frames until the connection fails or closes.
func (s *Server) serve(c *memberConn) {
	defer s.recoverFatal("serve")

	err := s.readLoop(c)
	s.disconnect(c, err)
}

func (s *Server) readLoop(c *memberConn) error {
	for {
		opcode, payload, err := c.readFrame()
		if err != nil {
			return err
		}
		if opcode == domain.OpcodeBind {
			logger.Trace(context.Background(), s.logger, "ignoring repeated bind", "conn", c.id)
			continue
		}
		s.workers.dispatch(&domain.Packet{Conn: c, Opcode: opcode, Payload: payload})
	}
}

func (s *Server) disconnect(c *memberConn, err error) {
	c.Close()
	s.untrack(c)

	addr, bound := c.Endpoint()
	if !bound {
		return
	}
	if abnormal(err) && s.running.Load() {
		s.logger.Debug("member connection lost", "endpoint", addr.String(), "conn", c.id, "error", err)
		s.monitor.onError(addr, err)
	}
	if s.endpoints.CompareAndDelete(addr, func(cur *memberConn) bool { return cur == c }) {
		s.svc.OnDisconnect(&addr)
	}
}

func (s *Server) track(c *memberConn) bool {
	if !s.running.Load() {
		return false
	}
	s.conns.Set(c.id, c)
	s.svc.Metrics().ConnectionsActive.Inc()
	return true
}

func (s *Server) untrack(c *memberConn) {
	if _, ok := s.conns.Pop(c.id); ok {
		s.svc.Metrics().ConnectionsActive.Dec()
	}
}

func (s *Server) recoverFatal(where string) {
	if r := recover(); r != nil {
		s.svc.OnFatalError(fmt.Errorf("member connection %s panic: %v", where, r))
	}
}

// heartbeatLoop sends a heartbeat frame on connections nothing was written
// to for a heartbeat interval.
func (s *Server) heartbeatLoop() {
	interval := s.svc.HeartbeatInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			for _, c := range s.conns.Values() {
				if _, bound := c.Endpoint(); !bound || c.idleFor(now) < interval {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), heartbeatTimeout)
				err := c.writeFrame(ctx, domain.OpcodeHeartbeat, nil)
				cancel()
				if err != nil {
					s.logger.Debug("heartbeat failed, closing connection", "conn", c.id, "error", err)
					c.Close()
				}
			}
		}
	}
}

func abnormal(err error) bool {
	return err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed)
}

func unwrapTLS(c net.Conn) net.Conn {
	if tc, ok := c.(*tls.Conn); ok {
		return tc.NetConn()
	}
	return c
}
