package clusterserver

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"syscall"
	"time"

	"github.com/yndnr/gridmesh/internal/infra/sockopt"
	"github.com/yndnr/gridmesh/pkg/portset"
)

// dialer opens outbound member connections. With a restricted port set,
// the local port is chosen from the set in random order, skipping ports
// already in use.
type dialer struct {
	ports   portset.Set
	timeout time.Duration
	opts    sockopt.Options
}

func (d *dialer) dial(ctx context.Context, addr string) (net.Conn, error) {
	if d.ports.IsUnrestricted() {
		return d.dialFrom(ctx, addr, 0)
	}

	ports := d.ports.Ports()
	rand.Shuffle(len(ports), func(i, j int) { ports[i], ports[j] = ports[j], ports[i] })

	var lastErr error
	for _, port := range ports {
		conn, err := d.dialFrom(ctx, addr, port)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (d *dialer) dialFrom(ctx context.Context, addr string, port int) (net.Conn, error) {
	nd := net.Dialer{
		Timeout: d.timeout,
		Control: sockopt.Control(sockopt.Options{
			ReuseAddr:     port != 0 && d.opts.ReuseAddr,
			ReceiveBuffer: d.opts.ReceiveBuffer,
			SendBuffer:    d.opts.SendBuffer,
		}),
	}
	if port != 0 {
		nd.LocalAddr = &net.TCPAddr{Port: port}
	}
	return nd.DialContext(ctx, "tcp", addr)
}
