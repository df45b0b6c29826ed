package tlsroots

import (
	"crypto/tls"
	"io"
	"net"
	"path/filepath"
	"testing"
)

func TestMember_Configs(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "member.crt")
	keyFile := filepath.Join(dir, "member.key")
	writeKeyPair(t, certFile, keyFile)

	m, err := Member(Options{
		CertFile:          certFile,
		KeyFile:           keyFile,
		CAFile:            certFile,
		RequireClientCert: true,
		ServerName:        "member.gridmesh.test",
	}, nil)
	if err != nil {
		t.Fatalf("Member() error = %v", err)
	}
	defer m.Watcher().Stop()

	if m.Server().ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("server ClientAuth = %v, want RequireAndVerifyClientCert", m.Server().ClientAuth)
	}
	if m.Client().ServerName != "member.gridmesh.test" {
		t.Errorf("client ServerName = %q", m.Client().ServerName)
	}
}

func TestMember_MutualHandshake(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "member.crt")
	keyFile := filepath.Join(dir, "member.key")
	writeKeyPair(t, certFile, keyFile)

	m, err := Member(Options{
		CertFile:          certFile,
		KeyFile:           keyFile,
		CAFile:            certFile,
		RequireClientCert: true,
		ServerName:        "member.gridmesh.test",
	}, nil)
	if err != nil {
		t.Fatalf("Member() error = %v", err)
	}
	defer m.Watcher().Stop()

	a, b := net.Pipe()
	server := tls.Server(a, m.Server())
	client := tls.Client(b, m.Client())
	defer server.Close()
	defer client.Close()

	errc := make(chan error, 1)
	go func() {
		if err := server.Handshake(); err != nil {
			errc <- err
			return
		}
		_, err := io.WriteString(server, "ok")
		errc <- err
	}()

	if err := client.Handshake(); err != nil {
		t.Fatalf("client Handshake() error = %v", err)
	}
	buf := make([]byte, 2)
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("server error = %v", err)
	}
	if string(buf) != "ok" {
		t.Errorf("read %q, want ok", buf)
	}
}

func TestMember_Errors(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "member.crt")
	keyFile := filepath.Join(dir, "member.key")
	writeKeyPair(t, certFile, keyFile)

	if _, err := Member(Options{CertFile: filepath.Join(dir, "nope"), KeyFile: keyFile}, nil); err == nil {
		t.Error("Member() with a missing certificate should fail")
	}
	if _, err := Member(Options{CertFile: certFile, KeyFile: keyFile, CADir: t.TempDir()}, nil); err == nil {
		t.Error("Member() with an empty CA directory should fail")
	}
}
