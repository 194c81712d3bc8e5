// Package codec implements the content-addressed Link type and the
// canonical structured-binary codec shared by Manifests, Nodes, and the
// peer protocol's wire messages: one length-prefixed, sorted-map-key
// encoding used everywhere a value needs a stable, hashable byte
// representation.
package codec

import (
	"fmt"

	"lukechampine.com/blake3"
)

// HashSize is the length of a Hash in bytes.
const HashSize = 32

// Hash is a BLAKE3-256 digest.
type Hash [HashSize]byte

// Sum returns the BLAKE3-256 hash of data.
func Sum(data []byte) Hash {
	return blake3.Sum256(data)
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// Less orders two hashes byte-lexicographically, used to canonicalize
// Pins sequences.
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether h is the all-zero hash (never a real BLAKE3
// output with overwhelming probability; used as a sentinel for "absent").
func (h Hash) IsZero() bool {
	return h == Hash{}
}
