package transport

import (
	"context"
	"log/slog"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// Task kinds, reported to the lane observer.
const (
	KindRemoveMember       = "remove-member"
	KindAddMember          = "add-member"
	KindMemberDisconnected = "member-disconnected"
)

type removeMemberTask struct {
	members Members
	addr    domain.Address
	logger  *slog.Logger
}

func (t *removeMemberTask) Kind() string { return KindRemoveMember }

func (t *removeMemberTask) Execute(context.Context) error {
	if _, ok := t.members.Remove(t.addr); ok {
		t.logger.Info("member removed", "member", t.addr.String())
	}
	return nil
}

type addMemberTask struct {
	members Members
	node    Node
	addr    domain.Address
	logger  *slog.Logger
}

func (t *addMemberTask) Kind() string { return KindAddMember }

func (t *addMemberTask) Execute(context.Context) error {
	m, added := t.members.Add(t.addr)
	m.SetState(domain.MemberActive)
	if added {
		t.logger.Info("member registered", "member", t.addr.String())
	}
	t.node.MemberJoined(t.addr)
	return nil
}

type memberDisconnectedTask struct {
	engine Engine
	addr   domain.Address
}

func (t *memberDisconnectedTask) Kind() string { return KindMemberDisconnected }

func (t *memberDisconnectedTask) Execute(context.Context) error {
	t.engine.OnMemberDisconnect(t.addr)
	return nil
}
