package clusterserver

import (
	"net"

	"github.com/hashicorp/go-sockaddr"

	"github.com/yndnr/gridmesh/internal/core/domain"
)

// advertiseAddress returns the member address other nodes should dial for
// a listener bound to bound. A wildcard bind advertises the first private
// interface address, falling back to the public one.
func advertiseAddress(publicHost string, bound net.Addr) (domain.Address, error) {
	addr, ok := domain.AddressFromNet(bound)
	if !ok {
		return domain.Address{}, domain.ErrInvalidAddress.WithDetails(bound.String())
	}
	if publicHost != "" {
		addr.Host = publicHost
		return addr, nil
	}

	ip := net.ParseIP(addr.Host)
	if ip == nil || !ip.IsUnspecified() {
		return addr, nil
	}

	host, err := sockaddr.GetPrivateIP()
	if err != nil {
		return domain.Address{}, domain.ErrInvalidAddress.WithDetails("resolve private address").WithCause(err)
	}
	if host == "" {
		if host, err = sockaddr.GetPublicIP(); err != nil {
			return domain.Address{}, domain.ErrInvalidAddress.WithDetails("resolve public address").WithCause(err)
		}
	}
	if host == "" {
		host = "127.0.0.1"
	}
	addr.Host = host
	return addr, nil
}
