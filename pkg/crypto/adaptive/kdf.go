package adaptive

import "golang.org/x/crypto/argon2"

// Argon2id parameters other than the iteration count.
const (
	kdfMemoryKiB = 64 * 1024
	kdfThreads   = 2
)

// DeriveKey derives a KeySize key from a shared password and salt.
// iterations below 1 are treated as 1.
func DeriveKey(password, salt string, iterations int) []byte {
	if iterations < 1 {
		iterations = 1
	}
	return argon2.IDKey([]byte(password), []byte(salt), uint32(iterations), kdfMemoryKiB, kdfThreads, KeySize)
}
