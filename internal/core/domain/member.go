package domain

import (
	"sync/atomic"
	"time"
)

// MemberState is the lifecycle state of a registered member.
type MemberState int32

const (
	// MemberJoining is a member reported by the join protocol but not yet confirmed.
	MemberJoining MemberState = iota
	// MemberActive is a confirmed member.
	MemberActive
	// MemberLeaving is a member that announced departure.
	MemberLeaving
)

// String returns the lowercase state name.
func (s MemberState) String() string {
	switch s {
	case MemberJoining:
		return "joining"
	case MemberActive:
		return "active"
	case MemberLeaving:
		return "leaving"
	default:
		return "unknown"
	}
}

// Member is a peer node known to the membership registry.
//
// The last-seen timestamp is refreshed from network goroutines without
// coordination: concurrent refreshes are last-writer-wins.
type Member struct {
	Address Address
	Joined  time.Time

	lastSeen atomic.Int64
	state    atomic.Int32
}

// NewMember creates a member in the joining state, seen now.
func NewMember(addr Address) *Member {
	now := time.Now()
	m := &Member{Address: addr, Joined: now}
	m.lastSeen.Store(now.UnixNano())
	m.state.Store(int32(MemberJoining))
	return m
}

// DidRead records that a frame from this member was just received.
func (m *Member) DidRead() {
	m.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns the time of the most recent DidRead.
func (m *Member) LastSeen() time.Time {
	return time.Unix(0, m.lastSeen.Load())
}

// State returns the member's lifecycle state.
func (m *Member) State() MemberState {
	return MemberState(m.state.Load())
}

// SetState updates the member's lifecycle state.
func (m *Member) SetState(s MemberState) {
	m.state.Store(int32(s))
}
