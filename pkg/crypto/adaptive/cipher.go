package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// CipherType identifies the cipher algorithm.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// KeySize is the key length used by both algorithms.
const KeySize = 32

// ErrCiphertextTooShort is returned when a sealed message lacks a nonce.
var ErrCiphertextTooShort = errors.New("adaptive: ciphertext too short")

// Cipher provides authenticated encryption. Implementations are safe for
// concurrent use.
type Cipher interface {
	// Type returns the cipher type.
	Type() CipherType
	// Encrypt seals plaintext, authenticating additionalData. The random
	// nonce is prepended to the result.
	Encrypt(plaintext, additionalData []byte) ([]byte, error)
	// Decrypt opens a message produced by Encrypt.
	Decrypt(ciphertext, additionalData []byte) ([]byte, error)
	// Overhead is the number of bytes Encrypt adds (nonce and tag).
	Overhead() int
}

// ParseCipherType maps a configuration value to a CipherType. The empty
// string selects the hardware preference.
func ParseCipherType(s string) (CipherType, error) {
	switch CipherType(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return Preferred(), nil
	case CipherAESGCM:
		return CipherAESGCM, nil
	case CipherChaCha20:
		return CipherChaCha20, nil
	default:
		return "", fmt.Errorf("adaptive: unknown cipher type %q", s)
	}
}

// Preferred returns the algorithm best suited to this CPU.
func Preferred() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

// New creates a cipher of the preferred type.
func New(key []byte) (Cipher, error) {
	return NewWithType(key, Preferred())
}

// NewWithType creates a cipher of the given type.
func NewWithType(key []byte, cipherType CipherType) (Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("adaptive: key must be %d bytes, got %d", KeySize, len(key))
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch cipherType {
	case CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("adaptive: unknown cipher type %q", cipherType)
	}
	if err != nil {
		return nil, err
	}
	return &aeadCipher{typ: cipherType, aead: aead}, nil
}

type aeadCipher struct {
	typ  CipherType
	aead cipher.AEAD
}

func (c *aeadCipher) Type() CipherType {
	return c.typ
}

func (c *aeadCipher) Overhead() int {
	return c.aead.NonceSize() + c.aead.Overhead()
}

func (c *aeadCipher) Encrypt(plaintext, additionalData []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	out := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, err
	}
	return c.aead.Seal(out, out[:nonceSize], plaintext, additionalData), nil
}

func (c *aeadCipher) Decrypt(ciphertext, additionalData []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	return c.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], additionalData)
}
