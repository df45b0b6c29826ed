// Package lane provides named, single-consumer asynchronous execution lanes.
//
// A Lane runs submitted tasks one at a time, in submission order, on its
// own goroutine. Submit never blocks the caller: the queue is unbounded, so
// network goroutines can hand off membership work without waiting on it.
package lane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// IO is the lane that carries membership mutations originating from the
// network path.
const IO = "io"

// ErrClosed is returned by Submit after the lane was stopped.
var ErrClosed = errors.New("lane: closed")

// Task is one unit of work. Tasks are values describing what to do, not
// closures over caller state.
type Task interface {
	// Kind names the task type for logs and metrics.
	Kind() string
	// Execute runs the task. ctx is cancelled when the lane is aborted.
	Execute(ctx context.Context) error
}

// Observer receives lane activity, typically a metrics registry.
type Observer interface {
	TaskQueued(lane string, depth int)
	TaskExecuted(lane, kind string, err error, elapsed time.Duration)
}

// Option configures a Lane.
type Option func(*Lane)

// WithLogger sets the logger used for task failures.
func WithLogger(l *slog.Logger) Option {
	return func(ln *Lane) {
		if l != nil {
			ln.logger = l
		}
	}
}

// WithObserver registers an activity observer.
func WithObserver(o Observer) Option {
	return func(ln *Lane) {
		ln.observer = o
	}
}

// Lane is a FIFO task queue drained by a single goroutine.
type Lane struct {
	name     string
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	queue   []Task
	closed  bool
	started bool

	notify chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a lane. Tasks submitted before Start are queued.
func New(name string, opts ...Option) *Lane {
	ctx, cancel := context.WithCancel(context.Background())
	ln := &Lane{
		name:   name,
		logger: slog.Default(),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(ln)
	}
	ln.logger = ln.logger.With("lane", name)
	return ln
}

// Name returns the lane identifier.
func (ln *Lane) Name() string {
	return ln.name
}

// Start launches the worker goroutine. It is safe to call more than once.
func (ln *Lane) Start() {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	if ln.started || ln.closed {
		return
	}
	ln.started = true
	go ln.run()
}

// Submit enqueues a task. It never blocks.
func (ln *Lane) Submit(task Task) error {
	if task == nil {
		return fmt.Errorf("lane %s: nil task", ln.name)
	}

	ln.mu.Lock()
	if ln.closed {
		ln.mu.Unlock()
		return ErrClosed
	}
	ln.queue = append(ln.queue, task)
	depth := len(ln.queue)
	ln.mu.Unlock()

	if ln.observer != nil {
		ln.observer.TaskQueued(ln.name, depth)
	}

	select {
	case ln.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued tasks not yet started.
func (ln *Lane) Pending() int {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	return len(ln.queue)
}

// Stop rejects new tasks and waits until queued tasks have run or ctx is
// done. On ctx expiry the remaining tasks are discarded.
func (ln *Lane) Stop(ctx context.Context) error {
	ln.mu.Lock()
	ln.closed = true
	if !ln.started {
		// Never started: nothing will drain the queue.
		ln.started = true
		ln.queue = nil
		ln.mu.Unlock()
		ln.cancel()
		close(ln.done)
		return nil
	}
	ln.mu.Unlock()

	select {
	case ln.notify <- struct{}{}:
	default:
	}

	select {
	case <-ln.done:
		return nil
	case <-ctx.Done():
		ln.Abort()
		return ctx.Err()
	}
}

// Abort rejects new tasks, discards queued ones and cancels the running
// task's context. It does not wait for the worker to exit.
func (ln *Lane) Abort() {
	ln.mu.Lock()
	ln.closed = true
	dropped := len(ln.queue)
	ln.queue = nil
	ln.mu.Unlock()

	ln.cancel()
	if dropped > 0 {
		ln.logger.Warn("lane aborted with pending tasks", "dropped", dropped)
	}
}

// Done is closed once the worker goroutine has exited.
func (ln *Lane) Done() <-chan struct{} {
	return ln.done
}

func (ln *Lane) run() {
	defer close(ln.done)

	for {
		task, ok := ln.next()
		if !ok {
			return
		}
		if task == nil {
			select {
			case <-ln.notify:
			case <-ln.ctx.Done():
				return
			}
			continue
		}
		ln.execute(task)
	}
}

// next pops the head of the queue. It returns ok=false once the lane is
// closed and drained, and a nil task when the queue is momentarily empty.
func (ln *Lane) next() (Task, bool) {
	ln.mu.Lock()
	defer ln.mu.Unlock()

	if len(ln.queue) == 0 {
		if ln.closed || ln.ctx.Err() != nil {
			return nil, false
		}
		return nil, true
	}
	task := ln.queue[0]
	ln.queue[0] = nil
	ln.queue = ln.queue[1:]
	return task, true
}

func (ln *Lane) execute(task Task) {
	start := time.Now()
	err := ln.safeExecute(task)
	elapsed := time.Since(start)

	if err != nil {
		ln.logger.Warn("lane task failed", "task", task.Kind(), "error", err)
	}
	if ln.observer != nil {
		ln.observer.TaskExecuted(ln.name, task.Kind(), err, elapsed)
	}
}

func (ln *Lane) safeExecute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lane %s: task %s panicked: %v", ln.name, task.Kind(), r)
		}
	}()
	return task.Execute(ln.ctx)
}
