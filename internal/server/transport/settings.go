package transport

import (
	"crypto/tls"
	"time"

	"github.com/yndnr/gridmesh/internal/infra/tlsroots"
	"github.com/yndnr/gridmesh/internal/server/config"
	"github.com/yndnr/gridmesh/pkg/crypto/adaptive"
	"github.com/yndnr/gridmesh/pkg/portset"
)

// Socket and IO settings of the configuration snapshot.

// SocketReceiveBufferSize returns the socket receive buffer in bytes.
func (s *Service) SocketReceiveBufferSize() int { return s.cfg.Socket.ReceiveBufferKB * 1024 }

// SocketSendBufferSize returns the socket send buffer in bytes.
func (s *Service) SocketSendBufferSize() int { return s.cfg.Socket.SendBufferKB * 1024 }

// SocketLinger returns the SO_LINGER timeout, 0 to disable lingering.
func (s *Service) SocketLinger() time.Duration {
	return time.Duration(s.cfg.Socket.LingerSeconds) * time.Second
}

// SocketKeepAlive reports whether TCP keep-alive is enabled on member sockets.
func (s *Service) SocketKeepAlive() bool { return s.cfg.Socket.KeepAlive }

// SocketNoDelay reports whether Nagle's algorithm is disabled.
func (s *Service) SocketNoDelay() bool { return s.cfg.Socket.NoDelay }

// SocketBindAny reports whether the member listener binds the wildcard address.
func (s *Service) SocketBindAny() bool { return s.cfg.Socket.BindAny }

// SocketPort returns the first member port tried by Bind.
func (s *Service) SocketPort() int { return s.cfg.Network.Port }

// SocketPortAutoIncrement reports whether Bind may try the following ports.
func (s *Service) SocketPortAutoIncrement() bool { return s.cfg.Network.PortAutoIncrement }

// SocketPortCount returns how many ports Bind tries when auto-increment is on.
func (s *Service) SocketPortCount() int { return s.cfg.Network.PortCount }

// ReuseSocketAddress reports whether SO_REUSEADDR is set on the listener.
func (s *Service) ReuseSocketAddress() bool { return s.cfg.Network.ReuseAddress }

// BindAddress returns the configured host of the member listener.
func (s *Service) BindAddress() string { return s.cfg.Network.BindAddr }

// MaxFrameSize returns the largest member frame payload accepted.
func (s *Service) MaxFrameSize() int { return s.cfg.Network.MaxFrameSize }

// PublicAddress returns the address advertised to other members, if set.
func (s *Service) PublicAddress() string { return s.cfg.Node.PublicAddress }

// NodeID returns the configured node ID.
func (s *Service) NodeID() string { return s.cfg.Node.ID }

// IOThreadCount returns the number of IO workers.
func (s *Service) IOThreadCount() int { return s.cfg.IO.ThreadCount }

// ConnectionMonitorInterval returns the minimum spacing between two counted
// faults of one endpoint.
func (s *Service) ConnectionMonitorInterval() time.Duration {
	return s.cfg.IO.ConnectionMonitorInterval
}

// ConnectionMonitorMaxFaults returns the counted faults after which an
// endpoint is removed.
func (s *Service) ConnectionMonitorMaxFaults() int { return s.cfg.IO.ConnectionMonitorMaxFaults }

// HeartbeatInterval returns the idle period after which a heartbeat is sent.
func (s *Service) HeartbeatInterval() time.Duration { return s.cfg.IO.HeartbeatInterval }

// ConnectTimeout returns the dial timeout for outbound member connections.
func (s *Service) ConnectTimeout() time.Duration { return s.cfg.IO.ConnectTimeout }

// OutboundPorts returns the local ports outbound member connections may
// bind. It is resolved once, at construction.
func (s *Service) OutboundPorts() portset.Set {
	return s.outbound
}

// GossipConfig returns the memberlist settings.
func (s *Service) GossipConfig() config.GossipConfig {
	return s.cfg.Discovery.Gossip
}

// SocketInterceptorConfig returns the socket interceptor settings.
func (s *Service) SocketInterceptorConfig() config.SocketInterceptorConfig {
	return s.cfg.Security.SocketInterceptor
}

// SymmetricEncryptionConfig returns the member frame encryption settings.
func (s *Service) SymmetricEncryptionConfig() config.SymmetricEncryptionConfig {
	return s.cfg.Security.SymmetricEncryption
}

// AsymmetricEncryptionConfig returns the asymmetric encryption settings.
func (s *Service) AsymmetricEncryptionConfig() config.AsymmetricEncryptionConfig {
	return s.cfg.Security.AsymmetricEncryption
}

// SSLConfig returns the member TLS settings.
func (s *Service) SSLConfig() config.SSLConfig {
	return s.cfg.Security.SSL
}

// SymmetricCipher returns the AEAD member frames are sealed with, or nil
// when symmetric encryption is disabled. The key is derived once.
func (s *Service) SymmetricCipher() (adaptive.Cipher, error) {
	s.cipherOnce.Do(func() {
		sym := s.cfg.Security.SymmetricEncryption
		if !sym.Enabled {
			return
		}
		typ, err := adaptive.ParseCipherType(sym.Algorithm)
		if err != nil {
			s.cipherErr = err
			return
		}
		key := adaptive.DeriveKey(sym.Password, sym.Salt, sym.IterationCount)
		s.cipher, s.cipherErr = adaptive.NewWithType(key, typ)
	})
	return s.cipher, s.cipherErr
}

// MemberTLS returns the member TLS material, or nil when SSL is disabled.
func (s *Service) MemberTLS() (*tlsroots.MemberTLS, error) {
	s.tlsOnce.Do(func() {
		ssl := s.cfg.Security.SSL
		if !ssl.Enabled {
			return
		}
		s.tls, s.tlsErr = tlsroots.Member(tlsroots.Options{
			CertFile:          ssl.CertFile,
			KeyFile:           ssl.KeyFile,
			CAFile:            ssl.CAFile,
			CADir:             ssl.CADir,
			RequireClientCert: ssl.RequireClientCert,
			ServerName:        ssl.ServerName,
		}, s.logger)
	})
	return s.tls, s.tlsErr
}

// TLSConfig returns the member listener TLS configuration, or nil when SSL
// is disabled.
func (s *Service) TLSConfig() (*tls.Config, error) {
	m, err := s.MemberTLS()
	if err != nil || m == nil {
		return nil, err
	}
	return m.Server(), nil
}
