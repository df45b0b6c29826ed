package command

import (
	"context"
	"strconv"
	"strings"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// Built-in operation names.
const (
	OpGetCount    = "get-count"
	OpCountDown   = "count-down"
	OpTrySetCount = "try-set-count"
	OpMembers     = "members"
)

// RegisterBuiltins registers the built-in operations on d.
func RegisterBuiltins(d *Dispatcher) error {
	builtins := map[string]Handler{
		OpGetCount:    HandlerFunc(getCount),
		OpCountDown:   HandlerFunc(countDown),
		OpTrySetCount: HandlerFunc(trySetCount),
		OpMembers:     HandlerFunc(members),
	}
	for name, h := range builtins {
		if err := d.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

func latchName(req *domain.CommandRequest) (string, *domain.CommandResponse) {
	name, ok := req.Arg(0)
	if !ok || name == "" {
		return "", domain.Failure(domain.ErrMissingArgument.WithDetails("latch name"))
	}
	return name, nil
}

// getCount returns a latch's count. An unknown name creates a latch at 0.
func getCount(_ context.Context, nc NodeContext, req *domain.CommandRequest) *domain.CommandResponse {
	name, fail := latchName(req)
	if fail != nil {
		return fail
	}
	return domain.Success(strconv.Itoa(nc.Objects().CountDownLatch(name).Count()))
}

func countDown(_ context.Context, nc NodeContext, req *domain.CommandRequest) *domain.CommandResponse {
	name, fail := latchName(req)
	if fail != nil {
		return fail
	}
	return domain.Success(strconv.Itoa(nc.Objects().CountDownLatch(name).CountDown()))
}

func trySetCount(_ context.Context, nc NodeContext, req *domain.CommandRequest) *domain.CommandResponse {
	name, fail := latchName(req)
	if fail != nil {
		return fail
	}
	raw, ok := req.Arg(1)
	if !ok {
		return domain.Failure(domain.ErrMissingArgument.WithDetails("count"))
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return domain.Failure(domain.ErrInvalidArgument.WithDetails("count must be a positive integer"))
	}
	return domain.Success(strconv.FormatBool(nc.Objects().CountDownLatch(name).TrySetCount(n)))
}

func members(_ context.Context, nc NodeContext, _ *domain.CommandRequest) *domain.CommandResponse {
	addrs := nc.MemberAddresses()
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return domain.Success(strings.Join(parts, ","))
}
