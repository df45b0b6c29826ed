package multicast

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

type datagram struct {
	payload []byte
	from    net.Addr
}

// chanSource feeds datagrams from a channel and honours read deadlines.
type chanSource struct {
	in       chan datagram
	mu       sync.Mutex
	deadline time.Time
}

func (s *chanSource) SetReadDeadline(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = t
	return nil
}

func (s *chanSource) ReadFrom(p []byte) (int, net.Addr, error) {
	s.mu.Lock()
	wait := time.Until(s.deadline)
	s.mu.Unlock()

	select {
	case d, ok := <-s.in:
		if !ok {
			return 0, nil, net.ErrClosed
		}
		return copy(p, d.payload), d.from, nil
	case <-time.After(wait):
		return 0, nil, os.ErrDeadlineExceeded
	}
}

func TestReceiver_ReportsPeersOnly(t *testing.T) {
	src := &chanSource{in: make(chan datagram, 10)}
	var mu sync.Mutex
	var got []domain.Address
	r := NewReceiver(local, src, func(a domain.Address) {
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
	}, nil)

	from := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 54327}
	src.in <- datagram{Announcement{Host: local.Host, Port: local.Port}.Marshal(), from}
	src.in <- datagram{[]byte("not an announcement"), from}
	src.in <- datagram{Announcement{Host: "10.0.0.2", Port: 5701}.Marshal(), from}
	close(src.in)

	require.NoError(t, r.Run(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.Address{domain.NewAddress("10.0.0.2", 5701)}, got)
}

func TestReceiver_StopsOnContext(t *testing.T) {
	src := &chanSource{in: make(chan datagram)}
	r := NewReceiver(local, src, func(domain.Address) {}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

// failingSource fails every read with the same non-timeout error.
type failingSource struct {
	reads atomic.Int32
}

func (s *failingSource) SetReadDeadline(time.Time) error { return nil }

func (s *failingSource) ReadFrom([]byte) (int, net.Addr, error) {
	s.reads.Add(1)
	return 0, nil, errors.New("socket broken")
}

func TestReceiver_BacksOffOnReadErrors(t *testing.T) {
	src := &failingSource{}
	r := NewReceiver(local, src, func(domain.Address) {}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	// 10ms doubling gives a read at 0, 10, 30, 70 and 150ms, plus one more
	// before the deadline at most.
	reads := src.reads.Load()
	assert.GreaterOrEqual(t, reads, int32(2))
	assert.LessOrEqual(t, reads, int32(10))
}

func TestReceiver_CancelInterruptsBackoff(t *testing.T) {
	src := &failingSource{}
	r := NewReceiver(local, src, func(domain.Address) {}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return src.reads.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Run did not return while backing off")
	}
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, minReadBackoff, nextBackoff(0))
	assert.Equal(t, 2*minReadBackoff, nextBackoff(minReadBackoff))
	assert.Equal(t, maxReadBackoff, nextBackoff(maxReadBackoff))
	assert.Equal(t, maxReadBackoff, nextBackoff(800*time.Millisecond))
}

func TestUDPTransport_Loopback(t *testing.T) {
	ctx := context.Background()
	cfg := UDPConfig{Group: "224.2.2.3", Port: 54399, TTL: 0, Loopback: true}
	tr, err := ListenUDP(ctx, cfg)
	if err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}
	defer tr.Close()

	found := make(chan domain.Address, 1)
	r := NewReceiver(local, tr, func(a domain.Address) {
		select {
		case found <- a:
		default:
		}
	}, nil)
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.Run(rctx)

	peer := domain.NewAddress("10.0.0.7", 5701)
	a := NewAnnouncer(peer, tr, nil, WithInterval(10*time.Millisecond))
	a.Start()
	defer a.Stop()

	select {
	case got := <-found:
		assert.Equal(t, peer, got)
	case <-time.After(2 * time.Second):
		t.Skip("no multicast loopback delivery in this environment")
	}
}

func TestListenUDP_RejectsUnicastGroup(t *testing.T) {
	_, err := ListenUDP(context.Background(), UDPConfig{Group: "10.0.0.1", Port: 54399})
	assert.Error(t, err)
}
