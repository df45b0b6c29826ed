// Package oom routes resource-exhaustion events (out of memory, out of
// file descriptors) to a single process-wide handler.
//
// The transport layer reports exhaustion here instead of shutting the node
// down: what to do about it is a process policy, not a connection concern.
package oom

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"
)

// Handler reacts to resource exhaustion.
type Handler interface {
	OnOutOfMemory(err error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(err error)

// OnOutOfMemory calls f(err).
func (f HandlerFunc) OnOutOfMemory(err error) {
	f(err)
}

var (
	mu      sync.RWMutex
	current Handler = NewFreeMemoryHandler(nil)
)

// SetHandler installs the process-wide handler and returns the previous one.
// A nil handler restores the default.
func SetHandler(h Handler) Handler {
	if h == nil {
		h = NewFreeMemoryHandler(nil)
	}
	mu.Lock()
	defer mu.Unlock()
	prev := current
	current = h
	return prev
}

// Dispatch passes err to the process-wide handler.
func Dispatch(err error) {
	mu.RLock()
	h := current
	mu.RUnlock()
	h.OnOutOfMemory(err)
}

// Dispatcher is a Handler forwarding to the process-wide handler at call
// time, for components that take a Handler dependency.
type Dispatcher struct{}

// OnOutOfMemory implements Handler.
func (Dispatcher) OnOutOfMemory(err error) {
	Dispatch(err)
}

// IsExhaustion reports whether err signals memory or descriptor exhaustion.
func IsExhaustion(err error) bool {
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM)
}

// FreeMemoryHandler logs the event and returns freed heap to the OS.
type FreeMemoryHandler struct {
	logger *slog.Logger
	events atomic.Uint64
}

// NewFreeMemoryHandler creates the default handler.
func NewFreeMemoryHandler(logger *slog.Logger) *FreeMemoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FreeMemoryHandler{logger: logger}
}

// OnOutOfMemory implements Handler.
func (h *FreeMemoryHandler) OnOutOfMemory(err error) {
	n := h.events.Add(1)
	h.logger.Error("resource exhaustion", "error", err, "occurrences", n)
	debug.FreeOSMemory()
}

// Events returns the number of handled events.
func (h *FreeMemoryHandler) Events() uint64 {
	return h.events.Load()
}
