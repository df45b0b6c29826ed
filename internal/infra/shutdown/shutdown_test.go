package shutdown

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestHandler_TriggerRunsHooksInReverse(t *testing.T) {
	h := NewHandler(time.Second)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		h.OnShutdown(func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	reason := errors.New("fatal io error")
	go h.Trigger(Immediate, reason)

	req, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if req.Mode != Immediate || req.Reason != reason {
		t.Errorf("request = %+v, want immediate with reason", req)
	}
	if len(order) != 3 || order[0] != 2 || order[2] != 0 {
		t.Errorf("hook order = %v, want [2 1 0]", order)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done() should be closed after Wait returns")
	}
}

func TestHandler_ModeInContext(t *testing.T) {
	tests := []struct {
		mode Mode
		want bool
	}{
		{Graceful, false},
		{Immediate, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			h := NewHandler(time.Second)
			var got bool
			h.OnShutdown(func(ctx context.Context) error {
				got = IsImmediate(ctx)
				return nil
			})
			h.Trigger(tt.mode, nil)
			if _, err := h.Wait(); err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("IsImmediate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandler_FirstTriggerWins(t *testing.T) {
	h := NewHandler(time.Second)
	h.Trigger(Graceful, nil)
	h.Trigger(Immediate, errors.New("late"))

	req, _ := h.Wait()
	if req.Mode != Graceful {
		t.Errorf("Mode = %v, want graceful", req.Mode)
	}
}

func TestHandler_HookErrorsJoined(t *testing.T) {
	h := NewHandler(time.Second)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	h.OnShutdown(func(context.Context) error { return errA })
	h.OnShutdown(func(context.Context) error { return nil })
	h.OnShutdown(func(context.Context) error { return errB })

	h.Trigger(Graceful, nil)
	_, err := h.Wait()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Wait() error = %v, want both hook errors", err)
	}
}

func TestHandler_Signal(t *testing.T) {
	h := NewHandler(time.Second)
	h.signals = []os.Signal{syscall.SIGUSR1}

	result := make(chan Request, 1)
	go func() {
		req, _ := h.Wait()
		result <- req
	}()

	time.Sleep(50 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}

	select {
	case req := <-result:
		if req.Signal != syscall.SIGUSR1 || req.Mode != Graceful {
			t.Errorf("request = %+v, want graceful SIGUSR1", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after signal")
	}
}

func TestWithMode(t *testing.T) {
	if IsImmediate(context.Background()) {
		t.Error("IsImmediate() on a bare context should be false")
	}
	if !IsImmediate(WithMode(context.Background(), Immediate)) {
		t.Error("IsImmediate() should see the immediate mode")
	}
}
