package multicast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/telemetry/logger"
)

// DefaultInterval is the pause between two announcements.
const DefaultInterval = 2 * time.Second

// Transport sends datagrams to the multicast group.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	Close() error
}

// Recorder observes announcement attempts.
type Recorder interface {
	RecordAnnouncement(err error)
}

// AnnouncerOption configures an Announcer.
type AnnouncerOption func(*Announcer)

// WithInterval sets the pause between announcements.
func WithInterval(d time.Duration) AnnouncerOption {
	return func(a *Announcer) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithRecorder reports every send attempt to r.
func WithRecorder(r Recorder) AnnouncerOption {
	return func(a *Announcer) {
		a.recorder = r
	}
}

// Announcer periodically sends this node's address to the group.
//
// The announcement is encoded once, by NewAnnouncer: an Announcer always
// advertises the address it was built with. If the node's address changes
// a new Announcer has to be created.
type Announcer struct {
	payload  []byte
	local    domain.Address
	tr       Transport
	logger   *slog.Logger
	interval time.Duration
	recorder Recorder

	ctx    context.Context
	cancel context.CancelFunc

	stopped  atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

// NewAnnouncer creates an announcer for local.
func NewAnnouncer(local domain.Address, tr Transport, l *slog.Logger, opts ...AnnouncerOption) *Announcer {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Announcer{
		payload:  Announcement{Host: local.Host, Port: local.Port}.Marshal(),
		local:    local,
		tr:       tr,
		logger:   logger.OrDefault(l).With("component", "multicast-announcer"),
		interval: DefaultInterval,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Address returns the announced address.
func (a *Announcer) Address() domain.Address {
	return a.local
}

// Start runs the announce loop in its own goroutine. Calling Start again,
// or after Stop, has no effect.
func (a *Announcer) Start() {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	go a.run()
}

// Stop asks the loop to exit and interrupts a pending sleep. A send in
// progress completes first. Stop does not wait; see Done.
func (a *Announcer) Stop() {
	a.stopped.Store(true)
	a.stopOnce.Do(a.cancel)
	if a.started.CompareAndSwap(false, true) {
		close(a.done)
	}
}

// Done is closed once the loop has exited.
func (a *Announcer) Done() <-chan struct{} {
	return a.done
}

func (a *Announcer) run() {
	defer close(a.done)

	timer := time.NewTimer(a.interval)
	defer timer.Stop()

	for !a.stopped.Load() {
		select {
		case <-timer.C:
		case <-a.ctx.Done():
			logger.Trace(context.Background(), a.logger, "announcer sleep interrupted, shutting down")
			continue
		}
		if a.stopped.Load() {
			break
		}
		a.send()
		timer.Reset(a.interval)
	}
}

func (a *Announcer) send() {
	err := a.tr.Send(a.ctx, a.payload)
	if err != nil {
		logger.Trace(context.Background(), a.logger, "announcement not sent", "error", err)
	}
	if a.recorder != nil {
		a.recorder.RecordAnnouncement(err)
	}
}
