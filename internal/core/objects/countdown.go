// Package objects hosts the node-local distributed objects reachable from
// client commands. Objects are created on first reference.
package objects

import (
	"context"
	"sync"

	"github.com/yndnr/gridmesh/pkg/cmap"
)

// CountDownLatch is a named counter that releases waiters when it reaches
// zero. A new latch starts at zero.
type CountDownLatch struct {
	name string

	mu       sync.Mutex
	count    int
	released chan struct{}
}

func newCountDownLatch(name string) *CountDownLatch {
	released := make(chan struct{})
	close(released)
	return &CountDownLatch{name: name, released: released}
}

// Name returns the latch name.
func (l *CountDownLatch) Name() string {
	return l.name
}

// Count returns the current count.
func (l *CountDownLatch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// TrySetCount sets the count if it is currently zero. It reports whether
// the count was set. count must be positive.
func (l *CountDownLatch) TrySetCount(count int) bool {
	if count <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count != 0 {
		return false
	}
	l.count = count
	l.released = make(chan struct{})
	return true
}

// CountDown decrements the count, releasing waiters when it reaches zero.
// Counting down a released latch has no effect. It returns the new count.
func (l *CountDownLatch) CountDown() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return 0
	}
	l.count--
	if l.count == 0 {
		close(l.released)
	}
	return l.count
}

// Await blocks until the count reaches zero or ctx is done.
func (l *CountDownLatch) Await(ctx context.Context) error {
	l.mu.Lock()
	released := l.released
	l.mu.Unlock()

	select {
	case <-released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry creates and looks up distributed objects by name.
type Registry struct {
	latches *cmap.Map[string, *CountDownLatch]
}

// NewRegistry creates an empty object registry.
func NewRegistry() *Registry {
	return &Registry{latches: cmap.NewString[*CountDownLatch]()}
}

// CountDownLatch returns the latch called name, creating it if needed.
func (r *Registry) CountDownLatch(name string) *CountDownLatch {
	l, _ := r.latches.GetOrCreate(name, func() *CountDownLatch {
		return newCountDownLatch(name)
	})
	return l
}

// DestroyCountDownLatch removes the latch called name. It reports whether
// the latch existed.
func (r *Registry) DestroyCountDownLatch(name string) bool {
	_, ok := r.latches.Pop(name)
	return ok
}

// CountDownLatchNames returns the names of all existing latches.
func (r *Registry) CountDownLatchNames() []string {
	return r.latches.Keys()
}
