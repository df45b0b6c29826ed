package oom

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatch_UsesInstalledHandler(t *testing.T) {
	var got []error
	prev := SetHandler(HandlerFunc(func(err error) { got = append(got, err) }))
	defer SetHandler(prev)

	cause := errors.New("cannot allocate")
	Dispatch(cause)
	Dispatcher{}.OnOutOfMemory(cause)

	assert.Equal(t, []error{cause, cause}, got)
}

func TestSetHandler_NilRestoresDefault(t *testing.T) {
	prev := SetHandler(nil)
	defer SetHandler(prev)

	mu.RLock()
	_, ok := current.(*FreeMemoryHandler)
	mu.RUnlock()
	assert.True(t, ok)
}

func TestFreeMemoryHandler_CountsEvents(t *testing.T) {
	h := NewFreeMemoryHandler(nil)
	h.OnOutOfMemory(syscall.ENOMEM)
	h.OnOutOfMemory(syscall.EMFILE)
	assert.EqualValues(t, 2, h.Events())
}

func TestIsExhaustion(t *testing.T) {
	acceptErr := &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept4", syscall.EMFILE)}

	assert.True(t, IsExhaustion(acceptErr))
	assert.True(t, IsExhaustion(fmt.Errorf("read: %w", syscall.ENOBUFS)))
	assert.False(t, IsExhaustion(syscall.ECONNRESET))
	assert.False(t, IsExhaustion(nil))
}
