package commandserver

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"
)

// Client is a command-frame client. It is safe for concurrent use;
// commands are sent one at a time.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
}

// Dial connects to a command server.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, br: bufio.NewReader(conn), bw: bufio.NewWriter(conn)}, nil
}

// Do sends one command and waits for its reply. A failure reply is not an
// error; err reports transport and protocol problems only.
func (c *Client) Do(ctx context.Context, operation string, args ...string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(readTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return Reply{}, err
	}

	if err := WriteCommand(c.bw, append([]string{operation}, args...)...); err != nil {
		return Reply{}, err
	}
	if err := c.bw.Flush(); err != nil {
		return Reply{}, err
	}
	return ReadReply(c.br)
}

// Close sends QUIT and closes the connection.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = c.Do(ctx, "QUIT")
	return c.conn.Close()
}
