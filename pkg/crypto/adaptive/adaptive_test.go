package adaptive

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

var testKey = func() []byte {
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		panic(err)
	}
	return k
}()

func TestNewWithType(t *testing.T) {
	for _, typ := range []CipherType{CipherAESGCM, CipherChaCha20} {
		t.Run(string(typ), func(t *testing.T) {
			c, err := NewWithType(testKey, typ)
			if err != nil {
				t.Fatalf("NewWithType() error = %v", err)
			}
			if c.Type() != typ {
				t.Errorf("Type() = %q, want %q", c.Type(), typ)
			}
			if c.Overhead() <= 0 {
				t.Errorf("Overhead() = %d, want positive", c.Overhead())
			}
		})
	}

	if _, err := NewWithType(testKey, "rot13"); err == nil {
		t.Error("unknown type should fail")
	}
	if _, err := NewWithType(testKey[:16], CipherAESGCM); err == nil {
		t.Error("short key should fail")
	}
}

func TestParseCipherType(t *testing.T) {
	tests := []struct {
		in      string
		want    CipherType
		wantErr bool
	}{
		{"", Preferred(), false},
		{"AES-GCM", CipherAESGCM, false},
		{" chacha20-poly1305 ", CipherChaCha20, false},
		{"des", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCipherType(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCipherType(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestEncryptDecrypt(t *testing.T) {
	for _, typ := range []CipherType{CipherAESGCM, CipherChaCha20} {
		t.Run(string(typ), func(t *testing.T) {
			c, _ := NewWithType(testKey, typ)
			plaintext := []byte("member frame payload")
			aad := []byte{0, 16}

			sealed, err := c.Encrypt(plaintext, aad)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(sealed) != len(plaintext)+c.Overhead() {
				t.Errorf("len(sealed) = %d, want %d", len(sealed), len(plaintext)+c.Overhead())
			}

			opened, err := c.Decrypt(sealed, aad)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(opened, plaintext) {
				t.Errorf("Decrypt() = %q, want %q", opened, plaintext)
			}

			if _, err := c.Decrypt(sealed, []byte{0, 17}); err == nil {
				t.Error("Decrypt() with different additional data should fail")
			}
			sealed[len(sealed)-1] ^= 0xff
			if _, err := c.Decrypt(sealed, aad); err == nil {
				t.Error("Decrypt() of tampered data should fail")
			}
			if _, err := c.Decrypt([]byte{1, 2, 3}, aad); !errors.Is(err, ErrCiphertextTooShort) {
				t.Errorf("Decrypt(short) error = %v, want ErrCiphertextTooShort", err)
			}
		})
	}
}

func TestEncrypt_UniqueNonces(t *testing.T) {
	c, _ := New(testKey)
	a, _ := c.Encrypt([]byte("same"), nil)
	b, _ := c.Encrypt([]byte("same"), nil)
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func TestDeriveKey(t *testing.T) {
	a := DeriveKey("secret", "salt-1", 1)
	b := DeriveKey("secret", "salt-1", 1)
	c := DeriveKey("secret", "salt-2", 1)

	if len(a) != KeySize {
		t.Fatalf("len(DeriveKey()) = %d, want %d", len(a), KeySize)
	}
	if !bytes.Equal(a, b) {
		t.Error("same password and salt should derive the same key")
	}
	if bytes.Equal(a, c) {
		t.Error("different salts should derive different keys")
	}
	if !bytes.Equal(DeriveKey("secret", "salt-1", 0), a) {
		t.Error("iterations below 1 should behave as 1")
	}
}
