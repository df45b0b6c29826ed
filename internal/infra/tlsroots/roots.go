package tlsroots

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoCertsFound is returned when PEM data contains no certificate.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found")

// Pool is a set of trusted CA certificates.
type Pool struct {
	certs *x509.CertPool
	count int
}

// NewSystemPool starts from the system roots, or an empty pool where the
// platform offers none.
func NewSystemPool() *Pool {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	return &Pool{certs: pool}
}

// NewEmptyPool returns a pool that trusts nothing yet.
func NewEmptyPool() *Pool {
	return &Pool{certs: x509.NewCertPool()}
}

// AddPEM adds every certificate in pemData.
func (p *Pool) AddPEM(pemData []byte) error {
	added := 0
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("tlsroots: parse certificate: %w", err)
		}
		p.certs.AddCert(cert)
		added++
	}
	if added == 0 {
		return ErrNoCertsFound
	}
	p.count += added
	return nil
}

// AddFile adds the certificates of one PEM file.
func (p *Pool) AddFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read %s: %w", path, err)
	}
	if err := p.AddPEM(data); err != nil {
		return fmt.Errorf("%w: %s", err, path)
	}
	return nil
}

// AddDir adds every .pem, .crt and .cer file of dir. Files that do not
// parse are returned in skipped rather than failing the whole directory.
func (p *Pool) AddDir(dir string) (skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("tlsroots: read dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pem", ".crt", ".cer":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := p.AddFile(path); err != nil {
			skipped = append(skipped, path)
		}
	}
	return skipped, nil
}

// Len returns the number of certificates added explicitly.
func (p *Pool) Len() int {
	return p.count
}

// CertPool returns the underlying x509 pool.
func (p *Pool) CertPool() *x509.CertPool {
	return p.certs
}
