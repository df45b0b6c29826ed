package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Mode is how the node terminates.
type Mode int

const (
	// Graceful lets hooks drain work and notify peers.
	Graceful Mode = iota
	// Immediate asks hooks to release resources without draining.
	Immediate
)

// String returns the mode name.
func (m Mode) String() string {
	if m == Immediate {
		return "immediate"
	}
	return "graceful"
}

type modeKey struct{}

// WithMode returns a context carrying mode, for hooks run outside Wait.
func WithMode(ctx context.Context, mode Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, mode)
}

// IsImmediate reports whether ctx belongs to an immediate shutdown.
func IsImmediate(ctx context.Context) bool {
	m, _ := ctx.Value(modeKey{}).(Mode)
	return m == Immediate
}

// Request describes why shutdown started.
type Request struct {
	Mode   Mode
	Reason error
	Signal os.Signal
}

// Handler runs shutdown hooks.
type Handler struct {
	timeout time.Duration

	mu    sync.Mutex
	hooks []func(context.Context) error

	trigger     chan Request
	triggerOnce sync.Once
	done        chan struct{}
	signals     []os.Signal
}

// NewHandler creates a handler. timeout bounds the total hook runtime.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		trigger: make(chan Request, 1),
		done:    make(chan struct{}),
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// OnShutdown registers a hook. Hooks run in reverse order of registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Trigger starts shutdown without a signal. Only the first trigger counts;
// it never blocks.
func (h *Handler) Trigger(mode Mode, reason error) {
	h.triggerOnce.Do(func() {
		h.trigger <- Request{Mode: mode, Reason: reason}
	})
}

// Wait blocks until a signal or Trigger, runs the hooks and returns the
// request that started shutdown together with the joined hook errors.
func (h *Handler) Wait() (Request, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.signals...)
	defer signal.Stop(sigCh)

	var req Request
	select {
	case sig := <-sigCh:
		req = Request{Mode: Graceful, Signal: sig}
	case req = <-h.trigger:
	}
	return req, h.run(req)
}

func (h *Handler) run(req Request) error {
	ctx, cancel := context.WithTimeout(WithMode(context.Background(), req.Mode), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := append([]func(context.Context) error(nil), h.hooks...)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	close(h.done)
	return errors.Join(errs...)
}

// Done returns a channel that closes when all hooks have run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
