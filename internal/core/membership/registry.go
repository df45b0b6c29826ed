// Package membership holds the node's view of the cluster: the registry of
// members keyed by address.
//
// Lookups are safe from any goroutine. Mutations are expected to arrive
// through the io lane so that they are applied in a single order; the
// registry itself only guarantees per-call atomicity.
package membership

import (
	"sort"
	"sync/atomic"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/pkg/cmap"
)

// Registry is the address-keyed member table.
type Registry struct {
	self    atomic.Pointer[domain.Address]
	members *cmap.Map[domain.Address, *domain.Member]
}

// NewRegistry creates an empty registry for the node at self. A zero self
// may be filled in later with SetSelf, once the member listener is bound.
func NewRegistry(self domain.Address) *Registry {
	r := &Registry{
		members: cmap.New[domain.Address, *domain.Member](domain.Address.String),
	}
	r.self.Store(&self)
	return r
}

// Member returns the member registered at addr.
func (r *Registry) Member(addr domain.Address) (*domain.Member, bool) {
	return r.members.Get(addr)
}

// Add registers addr if absent and returns the registered member. added
// reports whether a new member was created.
func (r *Registry) Add(addr domain.Address) (m *domain.Member, added bool) {
	m, loaded := r.members.GetOrCreate(addr, func() *domain.Member {
		return domain.NewMember(addr)
	})
	return m, !loaded
}

// Remove unregisters addr. It returns the removed member, if any.
func (r *Registry) Remove(addr domain.Address) (*domain.Member, bool) {
	m, ok := r.members.Pop(addr)
	if ok {
		m.SetState(domain.MemberLeaving)
	}
	return m, ok
}

// Members returns all registered members sorted by address.
func (r *Registry) Members() []*domain.Member {
	out := r.members.Values()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.String() < out[j].Address.String()
	})
	return out
}

// Size returns the number of registered members.
func (r *Registry) Size() int {
	return r.members.Count()
}

// Self returns this node's address.
func (r *Registry) Self() domain.Address {
	return *r.self.Load()
}

// SetSelf records this node's address.
func (r *Registry) SetSelf(addr domain.Address) {
	r.self.Store(&addr)
}
