package clusterserver

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// memberConn is one member connection. Reads happen on the owning
// goroutine only; writes are serialized by mu.
type memberConn struct {
	id       string
	conn     net.Conn
	codec    *Codec
	inbound  bool
	reader   *bufio.Reader
	endpoint atomic.Pointer[domain.Address]

	mu        sync.Mutex
	writer    *bufio.Writer
	lastWrite atomic.Int64

	closeOnce sync.Once
	closed    chan struct{}
}

var _ domain.Connection = (*memberConn)(nil)

func newMemberConn(conn net.Conn, codec *Codec, inbound bool) *memberConn {
	c := &memberConn{
		id:      ulid.Make().String(),
		conn:    conn,
		codec:   codec,
		inbound: inbound,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		closed:  make(chan struct{}),
	}
	c.lastWrite.Store(time.Now().UnixNano())
	return c
}

func (c *memberConn) ID() string { return c.id }

func (c *memberConn) Endpoint() (domain.Address, bool) {
	if p := c.endpoint.Load(); p != nil {
		return *p, true
	}
	return domain.Address{}, false
}

func (c *memberConn) setEndpoint(addr domain.Address) {
	c.endpoint.Store(&addr)
}

func (c *memberConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *memberConn) Write(ctx context.Context, p *domain.Packet) error {
	return c.writeFrame(ctx, p.Opcode, p.Payload)
}

func (c *memberConn) writeFrame(ctx context.Context, opcode uint16, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	if err := c.codec.WriteFrame(c.writer, opcode, payload); err != nil {
		return err
	}
	if err := c.writer.Flush(); err != nil {
		return err
	}
	c.lastWrite.Store(time.Now().UnixNano())
	return nil
}

func (c *memberConn) readFrame() (uint16, []byte, error) {
	return c.codec.ReadFrame(c.reader)
}

// idleFor returns how long nothing was written to the connection.
func (c *memberConn) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastWrite.Load()))
}

func (c *memberConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *memberConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
