// Package keyshare implements the ephemeral-key-wrap protocol that shares
// a per-bucket entry-secret with a recipient identified only by their
// public key: draw an ephemeral keypair, Diffie-Hellman with the
// recipient, and use the raw DH output as a key-encryption key for RFC
// 3394 AES Key Wrap.
package keyshare

import (
	"fmt"

	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/secret"
)

// ephemeralPublicSize + wrappedSize = Size.
const (
	ephemeralPublicSize = 32
	wrappedSize         = secret.Size + 8 // RFC 3394 adds one 8-byte block
	// Size is the length of a Share in bytes: ephemeral_public(32) || wrapped(40).
	Size = ephemeralPublicSize + wrappedSize
)

// Share is the 72-byte envelope delivering a content secret to one recipient.
type Share [Size]byte

// Wrap shares entrySecret with recipient's public key.
func Wrap(entrySecret secret.Secret, recipient identity.PublicKey) (Share, error) {
	ephemeral, err := identity.Generate()
	if err != nil {
		return Share{}, fmt.Errorf("keyshare: draw ephemeral keypair: %w", err)
	}
	defer ephemeral.Zero()

	ephemeralAgreeSecret, err := identity.ToAgreementSecret(ephemeral.Secret())
	if err != nil {
		return Share{}, fmt.Errorf("keyshare: convert ephemeral secret: %w", err)
	}
	recipientAgreePublic, err := identity.ToAgreementPublic(recipient)
	if err != nil {
		return Share{}, fmt.Errorf("keyshare: convert recipient public key: %w", err)
	}
	dh, err := identity.DH(ephemeralAgreeSecret, recipientAgreePublic)
	if err != nil {
		return Share{}, fmt.Errorf("keyshare: compute dh: %w", err)
	}

	wrapped, err := aesKeyWrap(dh[:], entrySecret[:])
	if err != nil {
		return Share{}, fmt.Errorf("keyshare: wrap entry secret: %w", err)
	}

	ephemeralPublic := ephemeral.Public()
	var out Share
	copy(out[:ephemeralPublicSize], ephemeralPublic[:])
	copy(out[ephemeralPublicSize:], wrapped)
	return out, nil
}

// Unwrap recovers the entry secret from a Share using the recipient's
// secret key. Authentication failure surfaces as bucketerr.ErrInvalidShare.
func Unwrap(share Share, me identity.SecretKey) (secret.Secret, error) {
	var ephemeralPublic identity.PublicKey
	copy(ephemeralPublic[:], share[:ephemeralPublicSize])
	wrapped := share[ephemeralPublicSize:]

	myAgreeSecret, err := identity.ToAgreementSecret(me)
	if err != nil {
		return secret.Secret{}, fmt.Errorf("keyshare: convert recipient secret: %w", err)
	}
	ephemeralAgreePublic, err := identity.ToAgreementPublic(ephemeralPublic)
	if err != nil {
		return secret.Secret{}, fmt.Errorf("keyshare: convert ephemeral public key: %w", err)
	}
	dh, err := identity.DH(myAgreeSecret, ephemeralAgreePublic)
	if err != nil {
		return secret.Secret{}, fmt.Errorf("keyshare: compute dh: %w", err)
	}

	unwrapped, err := aesKeyUnwrap(dh[:], wrapped)
	if err != nil {
		return secret.Secret{}, fmt.Errorf("keyshare: unwrap: %w", bucketerr.ErrInvalidShare)
	}

	var out secret.Secret
	copy(out[:], unwrapped)
	return out, nil
}
