package keyshare

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"

	"github.com/jaxbuckets/buckets/bucketerr"
)

// defaultIV is the standard RFC 3394 initial value.
var defaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// aesKeyWrap implements RFC 3394 AES Key Wrap. kek must be a valid AES key
// (16/24/32 bytes); plaintext must be a multiple of 8 bytes and at least 16.
// No example repo in the retrieval pack ships an RFC 3394 implementation
// (the corpus's AEAD and DH primitives come from golang.org/x/crypto and
// filippo.io/edwards25519, but key wrap is outside both), so this is built
// directly on crypto/aes's raw block cipher rather than bent onto an unrelated
// library.
func aesKeyWrap(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext)%8 != 0 || len(plaintext) < 16 {
		return nil, fmt.Errorf("keyshare: key wrap input must be a multiple of 8 bytes, >= 16, got %d", len(plaintext))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("keyshare: init kek cipher: %w", err)
	}

	n := len(plaintext) / 8
	r := make([][8]byte, n+1) // r[1..n] hold the blocks; r[0] is the accumulator
	for i := 0; i < n; i++ {
		copy(r[i+1][:], plaintext[i*8:(i+1)*8])
	}
	var a [8]byte
	copy(a[:], defaultIV[:])

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i][:])
			block.Encrypt(buf, buf)

			t := uint64(n*j + i)
			var tBytes [8]byte
			binary.BigEndian.PutUint64(tBytes[:], t)
			for k := range a {
				a[k] = buf[k] ^ tBytes[k]
			}
			copy(r[i][:], buf[8:])
		}
	}

	out := make([]byte, 8+len(plaintext))
	copy(out[:8], a[:])
	for i := 1; i <= n; i++ {
		copy(out[8*i:8*(i+1)], r[i][:])
	}
	return out, nil
}

// aesKeyUnwrap is the inverse of aesKeyWrap. It returns
// bucketerr.ErrInvalidShare if integrity check A == defaultIV fails.
func aesKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 24 {
		return nil, fmt.Errorf("keyshare: wrapped input malformed: %w", bucketerr.ErrInvalidShare)
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("keyshare: init kek cipher: %w", err)
	}

	n := len(wrapped)/8 - 1
	var a [8]byte
	copy(a[:], wrapped[:8])
	r := make([][8]byte, n+1)
	for i := 0; i < n; i++ {
		copy(r[i+1][:], wrapped[8*(i+1):8*(i+2)])
	}

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			var tBytes [8]byte
			binary.BigEndian.PutUint64(tBytes[:], t)
			var aXorT [8]byte
			for k := range a {
				aXorT[k] = a[k] ^ tBytes[k]
			}
			copy(buf[:8], aXorT[:])
			copy(buf[8:], r[i][:])
			block.Decrypt(buf, buf)
			copy(a[:], buf[:8])
			copy(r[i][:], buf[8:])
		}
	}

	if a != defaultIV {
		return nil, fmt.Errorf("keyshare: integrity check failed: %w", bucketerr.ErrInvalidShare)
	}

	out := make([]byte, n*8)
	for i := 1; i <= n; i++ {
		copy(out[8*(i-1):8*i], r[i][:])
	}
	return out, nil
}
