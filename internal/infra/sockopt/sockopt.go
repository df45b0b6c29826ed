package sockopt

import (
	"net"
	"syscall"
	"time"
)

// Options selects the options applied to a socket before bind.
type Options struct {
	ReuseAddr     bool
	ReceiveBuffer int
	SendBuffer    int
}

// Control returns a raw-socket hook for net.ListenConfig.Control and
// net.Dialer.Control.
func Control(opts Options) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = apply(fd, opts)
		})
		if err != nil {
			return err
		}
		return serr
	}
}

// TuneTCP applies the per-connection options of an established TCP
// connection. Zero sizes keep the kernel defaults; a negative linger keeps
// the default close behavior.
func TuneTCP(c net.Conn, keepAlive, noDelay bool, linger time.Duration) error {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetKeepAlive(keepAlive); err != nil {
		return err
	}
	if err := tc.SetNoDelay(noDelay); err != nil {
		return err
	}
	if linger > 0 {
		return tc.SetLinger(int(linger / time.Second))
	}
	return nil
}
