package tlsroots

import (
	"crypto/tls"
	"fmt"
	"log/slog"
)

// Options describes the member TLS material.
type Options struct {
	CertFile string
	KeyFile  string
	// CAFile and CADir hold the CAs member certificates are verified
	// against. When both are empty the system roots are used.
	CAFile string
	CADir  string
	// RequireClientCert makes the listener demand and verify a client
	// certificate (mutual TLS).
	RequireClientCert bool
	// ServerName overrides the name verified on dialed connections.
	ServerName string
}

// MemberTLS holds the server and client configurations of member
// connections and the watcher that keeps their key pair fresh.
type MemberTLS struct {
	server  *tls.Config
	client  *tls.Config
	watcher *Watcher
}

// Member loads the key pair and CA pool described by opts.
func Member(opts Options, logger *slog.Logger) (*MemberTLS, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w, err := NewWatcher(opts.CertFile, opts.KeyFile, WithLogger(logger))
	if err != nil {
		return nil, err
	}

	pool := NewSystemPool()
	if opts.CAFile != "" || opts.CADir != "" {
		pool = NewEmptyPool()
	}
	if opts.CAFile != "" {
		if err := pool.AddFile(opts.CAFile); err != nil {
			return nil, err
		}
	}
	if opts.CADir != "" {
		skipped, err := pool.AddDir(opts.CADir)
		if err != nil {
			return nil, err
		}
		for _, path := range skipped {
			logger.Warn("skipping unreadable CA file", "path", path)
		}
	}
	if (opts.CAFile != "" || opts.CADir != "") && pool.Len() == 0 {
		return nil, fmt.Errorf("%w: ca_file/ca_dir", ErrNoCertsFound)
	}

	clientAuth := tls.NoClientCert
	if opts.RequireClientCert {
		clientAuth = tls.RequireAndVerifyClientCert
	}

	return &MemberTLS{
		server: &tls.Config{
			GetCertificate: w.GetCertificate,
			ClientCAs:      pool.CertPool(),
			ClientAuth:     clientAuth,
			MinVersion:     tls.VersionTLS12,
		},
		client: &tls.Config{
			GetClientCertificate: w.GetClientCertificate,
			RootCAs:              pool.CertPool(),
			ServerName:           opts.ServerName,
			MinVersion:           tls.VersionTLS12,
		},
		watcher: w,
	}, nil
}

// Server returns the listener configuration.
func (m *MemberTLS) Server() *tls.Config {
	return m.server
}

// Client returns the dialer configuration.
func (m *MemberTLS) Client() *tls.Config {
	return m.client
}

// Watcher returns the key pair watcher. The caller starts and stops it.
func (m *MemberTLS) Watcher() *Watcher {
	return m.watcher
}
