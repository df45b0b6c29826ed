package multicast

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/telemetry/logger"
)

// maxDatagram bounds the size of an accepted announcement.
const maxDatagram = 1024

// pollInterval bounds how long Run takes to notice cancellation.
const pollInterval = 500 * time.Millisecond

// Consecutive read failures other than timeouts back off exponentially
// between these bounds.
const (
	minReadBackoff = 10 * time.Millisecond
	maxReadBackoff = time.Second
)

// Source reads datagrams from the multicast group.
type Source interface {
	ReadFrom(p []byte) (n int, src net.Addr, err error)
	SetReadDeadline(t time.Time) error
}

// Receiver reports the nodes announcing themselves on the group.
type Receiver struct {
	self        domain.Address
	src         Source
	onCandidate func(domain.Address)
	logger      *slog.Logger
}

// NewReceiver creates a receiver. onCandidate is called on the receiver's
// goroutine for every valid announcement from another node.
func NewReceiver(self domain.Address, src Source, onCandidate func(domain.Address), l *slog.Logger) *Receiver {
	return &Receiver{
		self:        self,
		src:         src,
		onCandidate: onCandidate,
		logger:      logger.OrDefault(l).With("component", "multicast-receiver"),
	}
}

// Run reads announcements until ctx is done or the source is closed.
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, maxDatagram)
	var backoff time.Duration
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.src.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return err
		}

		n, from, err := r.src.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, net.ErrClosed):
				return nil
			case errors.As(err, &netErr) && netErr.Timeout():
				backoff = 0
			default:
				backoff = nextBackoff(backoff)
				r.logger.Debug("multicast read failed", "error", err, "retry_in", backoff)
				if !sleepCtx(ctx, backoff) {
					return nil
				}
			}
			continue
		}
		backoff = 0
		r.handle(buf[:n], from)
	}
}

func (r *Receiver) handle(datagram []byte, from net.Addr) {
	a, err := UnmarshalAnnouncement(datagram)
	if err != nil {
		r.logger.Debug("dropping datagram", "from", addrString(from), "error", err)
		return
	}
	addr := a.Address()
	if addr.Equal(r.self) {
		return
	}
	logger.Trace(context.Background(), r.logger, "candidate announced", "candidate", addr.String())
	r.onCandidate(addr)
}

func nextBackoff(d time.Duration) time.Duration {
	if d < minReadBackoff {
		return minReadBackoff
	}
	if d *= 2; d > maxReadBackoff {
		return maxReadBackoff
	}
	return d
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
