// Package secret implements the per-item content secret: a 256-bit
// symmetric key used exactly once per plaintext/ciphertext pair for
// authenticated encryption. Every file blob and every directory node draws
// its own secret, so nonce-collision risk never accumulates across items -
// it only matters within the single (secret, nonce) pair a seal produces,
// and that nonce is drawn fresh every time.
package secret

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jaxbuckets/buckets/bucketerr"
)

// Size is the length of a content secret in bytes.
const Size = chacha20poly1305.KeySize // 32

// Overhead is the number of extra bytes Seal adds to a plaintext: the
// 12-byte nonce plus the 16-byte authentication tag. Named here so callers
// never need to import chacha20poly1305 to reason about blob layout:
// nonce(12) || ciphertext || tag(16).
const Overhead = chacha20poly1305.NonceSize + chacha20poly1305.Overhead

// Secret is a 256-bit symmetric key.
type Secret [Size]byte

// Generate draws a fresh secret from a CSPRNG.
func Generate() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("secret: draw key: %w", err)
	}
	return s, nil
}

// Zero overwrites the secret in place.
func (s *Secret) Zero() {
	for i := range s {
		s[i] = 0
	}
}

// Seal draws a random 12-byte nonce and returns
// nonce || ChaCha20-Poly1305(key=s, nonce, plaintext) || tag.
func Seal(s Secret, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(s[:])
	if err != nil {
		return nil, fmt.Errorf("secret: init aead: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("secret: draw nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+chacha20poly1305.Overhead)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Open is the inverse of Seal. It rejects truncated input and returns
// bucketerr.ErrTampered on authentication failure.
func Open(s Secret, sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("secret: sealed blob too short: %w", bucketerr.ErrTampered)
	}
	aead, err := chacha20poly1305.New(s[:])
	if err != nil {
		return nil, fmt.Errorf("secret: init aead: %w", err)
	}
	nonce := sealed[:chacha20poly1305.NonceSize]
	ciphertext := sealed[chacha20poly1305.NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("secret: open: %w", bucketerr.ErrTampered)
	}
	return plaintext, nil
}
