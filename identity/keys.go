// Package identity implements long-lived peer identities and their
// deterministic conversion to Diffie-Hellman-capable key-agreement keys.
//
// Every peer on the network holds one Ed25519 signing keypair. The public
// half doubles as the peer's global identifier and the recipient address
// for key sharing (package keyshare). Both halves convert deterministically
// to X25519 for Diffie-Hellman, following the standard Ed25519-to-Curve25519
// mapping: the secret converts by hashing and clamping the seed (the same
// recipe libsodium's crypto_sign_ed25519_sk_to_curve25519 uses), and the
// public converts by mapping the Edwards point to its Montgomery u-coordinate.
package identity

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/jaxbuckets/buckets/bucketerr"
)

// SecretKey is an Ed25519 seed: the 32 bytes that deterministically
// generate the full signing keypair.
type SecretKey [32]byte

// PublicKey is an Ed25519 public key and the peer's global identifier.
type PublicKey [32]byte

// String renders the public key as lowercase hex.
func (pk PublicKey) String() string {
	return fmt.Sprintf("%x", pk[:])
}

// IsEqual reports whether two public keys are byte-identical.
func (pk PublicKey) IsEqual(other PublicKey) bool {
	return pk == other
}

// AgreementSecret is the X25519 form of a SecretKey.
type AgreementSecret [32]byte

// AgreementPublic is the X25519 form of a PublicKey.
type AgreementPublic [32]byte

// Identity bundles a secret key with its derived public key.
type Identity struct {
	secret SecretKey
	public PublicKey
}

// Generate draws a fresh signing keypair from a CSPRNG.
func Generate() (*Identity, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("identity: draw seed: %w", err)
	}
	return FromSeed(seed)
}

// FromSeed rebuilds an Identity from a previously generated 32-byte seed.
func FromSeed(seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("identity: seed must be %d bytes: %w", ed25519.SeedSize, bucketerr.ErrMalformed)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("identity: derive public key: %w", bucketerr.ErrMalformed)
	}
	id := &Identity{}
	copy(id.secret[:], seed)
	copy(id.public[:], pub)
	return id, nil
}

// Public returns the identity's public key.
func (id *Identity) Public() PublicKey {
	return id.public
}

// Secret returns the identity's secret seed. Callers must not retain the
// returned value past the Identity's lifetime.
func (id *Identity) Secret() SecretKey {
	return id.secret
}

// Zero overwrites the secret key in place. Call via defer immediately
// after loading an Identity that will not be reused.
func (id *Identity) Zero() {
	for i := range id.secret {
		id.secret[i] = 0
	}
}

// clampX25519 applies the standard X25519 scalar clamp in place.
func clampX25519(scalar *[32]byte) {
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
}

// ToAgreementSecret deterministically maps an Ed25519 seed to its X25519
// scalar.
func ToAgreementSecret(sk SecretKey) (AgreementSecret, error) {
	digest := sha512.Sum512(sk[:])
	var out AgreementSecret
	copy(out[:], digest[:32])
	clampX25519((*[32]byte)(&out))
	return out, nil
}

// ToAgreementPublic deterministically maps an Ed25519 public key to its
// X25519 Montgomery-form public key.
func ToAgreementPublic(pk PublicKey) (AgreementPublic, error) {
	point, err := new(edwards25519.Point).SetBytes(pk[:])
	if err != nil {
		return AgreementPublic{}, fmt.Errorf("identity: decode public point: %w", bucketerr.ErrMalformed)
	}
	var out AgreementPublic
	copy(out[:], point.BytesMontgomery())
	return out, nil
}

// DH computes the raw X25519 shared secret between sk and pk.
func DH(sk AgreementSecret, pk AgreementPublic) ([32]byte, error) {
	curve := ecdh.X25519()
	priv, err := curve.NewPrivateKey(sk[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("identity: load agreement secret: %w", bucketerr.ErrMalformed)
	}
	pub, err := curve.NewPublicKey(pk[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("identity: load agreement public: %w", bucketerr.ErrMalformed)
	}
	shared, err := priv.ECDH(pub)
	if err != nil {
		return [32]byte{}, fmt.Errorf("identity: compute shared secret: %w", err)
	}
	var out [32]byte
	copy(out[:], shared)
	return out, nil
}
