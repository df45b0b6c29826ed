package multicast

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/yndnr/gridmesh/internal/infra/sockopt"
)

// UDPConfig describes the multicast group.
type UDPConfig struct {
	Group string
	Port  int
	TTL   int
	// Loopback delivers the node's own datagrams back to local listeners,
	// which lets several nodes on one host find each other.
	Loopback bool
	// Interface names the network interface to use; "" lets the kernel pick.
	Interface string
}

// UDPTransport is a UDP socket joined to a multicast group. It implements
// both Transport and Source.
type UDPTransport struct {
	conn  net.PacketConn
	pc    *ipv4.PacketConn
	group *net.UDPAddr
	ifi   *net.Interface
}

// ListenUDP binds the group port and joins the group.
func ListenUDP(ctx context.Context, cfg UDPConfig) (*UDPTransport, error) {
	ip := net.ParseIP(cfg.Group)
	if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("multicast: %q is not an IPv4 multicast group", cfg.Group)
	}

	var ifi *net.Interface
	if cfg.Interface != "" {
		var err error
		if ifi, err = net.InterfaceByName(cfg.Interface); err != nil {
			return nil, fmt.Errorf("multicast: interface %s: %w", cfg.Interface, err)
		}
	}

	lc := net.ListenConfig{Control: sockopt.Control(sockopt.Options{ReuseAddr: true})}
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("multicast: listen: %w", err)
	}

	t := &UDPTransport{
		conn:  conn,
		pc:    ipv4.NewPacketConn(conn),
		group: &net.UDPAddr{IP: ip, Port: cfg.Port},
		ifi:   ifi,
	}
	if err := t.configure(cfg); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *UDPTransport) configure(cfg UDPConfig) error {
	if err := t.pc.JoinGroup(t.ifi, &net.UDPAddr{IP: t.group.IP}); err != nil {
		return fmt.Errorf("multicast: join %s: %w", t.group.IP, err)
	}
	if t.ifi != nil {
		if err := t.pc.SetMulticastInterface(t.ifi); err != nil {
			return fmt.Errorf("multicast: set interface: %w", err)
		}
	}
	if err := t.pc.SetMulticastTTL(cfg.TTL); err != nil {
		return fmt.Errorf("multicast: set ttl: %w", err)
	}
	if err := t.pc.SetMulticastLoopback(cfg.Loopback); err != nil {
		return fmt.Errorf("multicast: set loopback: %w", err)
	}
	return nil
}

// Send writes one datagram to the group.
func (t *UDPTransport) Send(ctx context.Context, payload []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}
	_, err := t.pc.WriteTo(payload, nil, t.group)
	return err
}

// ReadFrom reads one datagram.
func (t *UDPTransport) ReadFrom(p []byte) (int, net.Addr, error) {
	n, _, src, err := t.pc.ReadFrom(p)
	return n, src, err
}

// SetReadDeadline bounds the next ReadFrom.
func (t *UDPTransport) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

// LocalAddr returns the bound socket address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Close leaves the group and closes the socket.
func (t *UDPTransport) Close() error {
	_ = t.pc.LeaveGroup(t.ifi, &net.UDPAddr{IP: t.group.IP})
	return t.conn.Close()
}
