package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/yndnr/gridmesh/internal/core/domain"
	"github.com/yndnr/gridmesh/pkg/portset"
)

// Verify validates the configuration. It returns the first problem found
// as a domain.ErrInvalidConfig (or domain.ErrMalformedPort,
// domain.ErrUnsupported) with the offending key in the details.
func Verify(cfg *ServerConfig) error {
	checks := []func(*ServerConfig) error{
		verifyNetwork,
		verifySocket,
		verifyIO,
		verifyDiscovery,
		verifyServer,
		verifySecurity,
		verifyLog,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf(format, args...))
}

func validPort(p int) bool {
	return p >= 0 && p <= portset.MaxPort
}

func verifyNetwork(cfg *ServerConfig) error {
	n := &cfg.Network
	if !validPort(n.Port) {
		return invalid("network.port %d out of range", n.Port)
	}
	if n.PortAutoIncrement && n.PortCount < 1 {
		return invalid("network.port_count must be at least 1")
	}
	if n.BindAddr != "" && net.ParseIP(n.BindAddr) == nil {
		return invalid("network.bind_addr %q is not an IP address", n.BindAddr)
	}
	if n.MaxFrameSize <= 0 {
		return invalid("network.max_frame_size must be positive")
	}
	if _, err := portset.Resolve(n.OutboundPortDefinitions, n.OutboundPorts); err != nil {
		return fmt.Errorf("network.outbound_port_definitions: %w", err)
	}
	return nil
}

func verifySocket(cfg *ServerConfig) error {
	s := &cfg.Socket
	if s.ReceiveBufferKB < 0 || s.SendBufferKB < 0 {
		return invalid("socket buffer sizes must not be negative")
	}
	if s.LingerSeconds < 0 {
		return invalid("socket.linger_seconds must not be negative")
	}
	return nil
}

func verifyIO(cfg *ServerConfig) error {
	io := &cfg.IO
	if io.ThreadCount < 1 {
		return invalid("io.thread_count must be at least 1")
	}
	if io.ConnectionMonitorInterval <= 0 {
		return invalid("io.connection_monitor_interval must be positive")
	}
	if io.ConnectionMonitorMaxFaults < 1 {
		return invalid("io.connection_monitor_max_faults must be at least 1")
	}
	if io.HeartbeatInterval <= 0 || io.ConnectTimeout <= 0 {
		return invalid("io.heartbeat_interval and io.connect_timeout must be positive")
	}
	return nil
}

func verifyDiscovery(cfg *ServerConfig) error {
	m := &cfg.Discovery.Multicast
	if m.Enabled {
		ip := net.ParseIP(m.Group)
		if ip == nil || !ip.IsMulticast() {
			return invalid("discovery.multicast.group %q is not a multicast address", m.Group)
		}
		if m.Port <= 0 || !validPort(m.Port) {
			return invalid("discovery.multicast.port %d out of range", m.Port)
		}
		if m.TTL < 0 || m.TTL > 255 {
			return invalid("discovery.multicast.ttl %d out of range", m.TTL)
		}
		if m.Interval <= 0 {
			return invalid("discovery.multicast.interval must be positive")
		}
	}

	g := &cfg.Discovery.Gossip
	if g.Enabled {
		if !validPort(g.BindPort) {
			return invalid("discovery.gossip.bind_port %d out of range", g.BindPort)
		}
		for _, seed := range g.Seeds {
			if _, _, err := net.SplitHostPort(seed); err != nil {
				return invalid("discovery.gossip.seeds: %q is not host:port", seed)
			}
		}
	}
	return nil
}

func verifyServer(cfg *ServerConfig) error {
	c := &cfg.Server.Command
	if c.Enabled {
		if _, _, err := net.SplitHostPort(c.Addr); err != nil {
			return invalid("server.command.addr %q is not host:port", c.Addr)
		}
		if c.RateLimit < 0 || c.RateBurst < 0 {
			return invalid("server.command rate limits must not be negative")
		}
		if c.MaxConnections < 1 {
			return invalid("server.command.max_connections must be at least 1")
		}
	}
	a := &cfg.Server.Admin
	if a.Enabled {
		if _, _, err := net.SplitHostPort(a.Addr); err != nil {
			return invalid("server.admin.addr %q is not host:port", a.Addr)
		}
	}
	return nil
}

func verifySecurity(cfg *ServerConfig) error {
	sec := &cfg.Security

	if sec.SocketInterceptor.Enabled {
		for _, cidr := range sec.SocketInterceptor.AllowedCIDRs {
			if _, _, err := net.ParseCIDR(cidr); err != nil && net.ParseIP(cidr) == nil {
				return invalid("security.socket_interceptor.allowed_cidrs: %q", cidr)
			}
		}
	}

	sym := &sec.SymmetricEncryption
	if sym.Enabled {
		if sym.Password == "" || sym.Salt == "" {
			return invalid("security.symmetric_encryption requires password and salt")
		}
		switch strings.ToLower(sym.Algorithm) {
		case "", "aes-gcm", "chacha20-poly1305":
		default:
			return invalid("security.symmetric_encryption.algorithm %q is not supported", sym.Algorithm)
		}
		if sym.IterationCount < 1 {
			return invalid("security.symmetric_encryption.iteration_count must be at least 1")
		}
	}

	if sec.AsymmetricEncryption.Enabled {
		return domain.ErrUnsupported.WithDetails("security.asymmetric_encryption")
	}

	ssl := &sec.SSL
	if ssl.Enabled {
		if ssl.CertFile == "" || ssl.KeyFile == "" {
			return invalid("security.ssl requires cert_file and key_file")
		}
		for _, f := range []string{ssl.CertFile, ssl.KeyFile, ssl.CAFile} {
			if f == "" {
				continue
			}
			if _, err := os.Stat(f); err != nil {
				return invalid("security.ssl: %v", err)
			}
		}
	}
	return nil
}

func verifyLog(cfg *ServerConfig) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level %q is not a known level", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text", "console":
	default:
		return invalid("log.format %q is not json or text", cfg.Log.Format)
	}
	return nil
}
