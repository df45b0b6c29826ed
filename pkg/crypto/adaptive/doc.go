// Package adaptive provides the AEAD used to seal member frames.
//
// Supported algorithms:
//
//   - AES-256-GCM: preferred where the CPU accelerates AES
//   - ChaCha20-Poly1305: used elsewhere, or when requested explicitly
//
// Keys are derived from a shared password and salt with Argon2id, so every
// member configured with the same secret derives the same key.
//
// Usage:
//
//	key := adaptive.DeriveKey(password, salt, iterations)
//	c, err := adaptive.NewWithType(key, adaptive.CipherChaCha20)
//	sealed, err := c.Encrypt(frame, header)
//	frame, err := c.Decrypt(sealed, header)
package adaptive
