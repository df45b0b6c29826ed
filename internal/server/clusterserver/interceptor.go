package clusterserver

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/internal/server/config"
)

// Interceptor decides whether a member connection may proceed, before any
// frame is read from or written to it.
type Interceptor interface {
	Allow(remote net.Addr) error
}

// cidrInterceptor admits peers whose IP falls in one of the allowed
// prefixes. Entries without a prefix length are single addresses.
type cidrInterceptor struct {
	prefixes []netip.Prefix
}

// NewInterceptor builds the interceptor described by cfg, or nil when
// interception is disabled.
func NewInterceptor(cfg config.SocketInterceptorConfig) (Interceptor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	ic := &cidrInterceptor{}
	for _, entry := range cfg.AllowedCIDRs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				return nil, domain.ErrInvalidConfig.WithDetails(fmt.Sprintf("socket interceptor: %q", entry)).WithCause(err)
			}
			ic.prefixes = append(ic.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, domain.ErrInvalidConfig.WithDetails(fmt.Sprintf("socket interceptor: %q", entry)).WithCause(err)
		}
		ic.prefixes = append(ic.prefixes, prefix.Masked())
	}
	return ic, nil
}

func (ic *cidrInterceptor) Allow(remote net.Addr) error {
	ap, err := netip.ParseAddrPort(remote.String())
	if err != nil {
		return domain.ErrConnectionRejected.WithDetails(remote.String()).WithCause(err)
	}
	ip := ap.Addr().Unmap()
	for _, p := range ic.prefixes {
		if p.Contains(ip) {
			return nil
		}
	}
	return domain.ErrConnectionRejected.WithDetails(ip.String() + " is not an allowed member address")
}
