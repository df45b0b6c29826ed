//go:build unix

package sockopt

import (
	"context"
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestControl_ReuseAddrAllowsSharedPort(t *testing.T) {
	lc := net.ListenConfig{Control: Control(Options{ReuseAddr: true})}

	first, err := lc.ListenPacket(context.Background(), "udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("first ListenPacket() error = %v", err)
	}
	defer first.Close()

	second, err := lc.ListenPacket(context.Background(), "udp4", first.LocalAddr().String())
	if err != nil {
		t.Fatalf("second ListenPacket() on the same port error = %v", err)
	}
	second.Close()
}

func TestControl_BufferSizes(t *testing.T) {
	lc := net.ListenConfig{Control: Control(Options{ReceiveBuffer: 64 * 1024})}
	ln, err := lc.Listen(context.Background(), "tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	raw, err := ln.(*net.TCPListener).SyscallConn()
	if err != nil {
		t.Fatal(err)
	}
	var got int
	raw.Control(func(fd uintptr) {
		got, _ = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	})
	// The kernel may round or double the requested size.
	if got < 64*1024 {
		t.Errorf("SO_RCVBUF = %d, want at least %d", got, 64*1024)
	}
}

func TestTuneTCP(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	c, err := net.Dial("tcp4", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := TuneTCP(c, true, true, time.Second); err != nil {
		t.Errorf("TuneTCP() error = %v", err)
	}

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	if err := TuneTCP(a, true, true, 0); err != nil {
		t.Errorf("TuneTCP() on a non-TCP conn error = %v", err)
	}
}
