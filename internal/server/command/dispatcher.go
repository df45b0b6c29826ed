package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/core/objects"
	"github.com/yndnr/gridmesh/internal/telemetry/logger"
)

// NodeContext is the view of the node handlers operate on.
type NodeContext interface {
	ThisAddress() domain.Address
	Objects() *objects.Registry
	MemberAddresses() []domain.Address
}

// Handler answers one operation. Handlers run on the caller's goroutine:
// they must return promptly and must not change dispatcher routing.
type Handler interface {
	Handle(ctx context.Context, nc NodeContext, req *domain.CommandRequest) *domain.CommandResponse
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, nc NodeContext, req *domain.CommandRequest) *domain.CommandResponse

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, nc NodeContext, req *domain.CommandRequest) *domain.CommandResponse {
	return f(ctx, nc, req)
}

// Recorder observes handled commands.
type Recorder interface {
	RecordCommand(operation string, ok bool, elapsed time.Duration)
}

// Dispatcher routes commands by operation name. Names are matched
// case-insensitively.
type Dispatcher struct {
	nc       NodeContext
	logger   *slog.Logger
	recorder Recorder

	mu       sync.RWMutex
	handlers map[string]Handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRecorder reports every handled command to r.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = r
	}
}

// NewDispatcher creates an empty dispatcher bound to nc.
func NewDispatcher(nc NodeContext, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		nc:       nc,
		logger:   slog.Default(),
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds h to name. Registering a name twice is an error.
func (d *Dispatcher) Register(name string, h Handler) error {
	key := normalize(name)
	if key == "" || h == nil {
		return domain.ErrInvalidArgument.WithDetails("handler name and handler are required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[key]; exists {
		return domain.ErrDuplicateHandler.WithDetails(key)
	}
	d.handlers[key] = h
	return nil
}

// Operations returns the registered operation names, sorted.
func (d *Dispatcher) Operations() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle runs the handler registered for req's operation. Unknown
// operations and handler panics produce failure responses.
func (d *Dispatcher) Handle(ctx context.Context, req *domain.CommandRequest) (resp *domain.CommandResponse) {
	if req == nil {
		return domain.Failure(domain.ErrUnknownOperation.WithDetails("empty command"))
	}
	op := normalize(req.Operation)

	d.mu.RLock()
	h, ok := d.handlers[op]
	d.mu.RUnlock()
	if !ok {
		return domain.Failure(domain.ErrUnknownOperation.WithDetails(fmt.Sprintf("'%s'", req.Operation)))
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.With(ctx, d.logger).Error("command handler panicked", "operation", op, "panic", r)
			resp = domain.Failure(domain.ErrInternal.WithDetails(op))
		}
		if resp == nil {
			resp = domain.Failure(domain.ErrInternal.WithDetails(op + ": no response"))
		}
		if d.recorder != nil {
			d.recorder.RecordCommand(op, resp.OK(), time.Since(start))
		}
	}()
	return h.Handle(ctx, d.nc, req)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
