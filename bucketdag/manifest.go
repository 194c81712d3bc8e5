package bucketdag

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/keyshare"
)

// Role is a principal's permission level over a bucket.
type Role uint8

const (
	RoleOwner Role = iota + 1
	RoleEditor
	RoleViewer
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleEditor:
		return "editor"
	case RoleViewer:
		return "viewer"
	default:
		return "unknown"
	}
}

// Principal names who a share was issued to and at what role.
type Principal struct {
	Role     Role
	Identity identity.PublicKey
}

// ShareEntry is one row of a Manifest's shares mapping: recipient public
// key -> (principal, wrapped entry secret).
type ShareEntry struct {
	Recipient identity.PublicKey
	Principal Principal
	Share     keyshare.Share
}

// BucketID is the 128-bit identifier stable across a bucket's whole
// version chain.
type BucketID [16]byte

func (id BucketID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// Manifest is the unencrypted head of one bucket version.
type Manifest struct {
	ID       BucketID
	Name     string
	Shares   []ShareEntry
	Entry    codec.Link
	Pins     codec.Link
	Previous *codec.Link
	Version  string
}

// sortedShares returns a copy of m.Shares ordered by recipient public-key
// bytes, the canonical order spec.md leaves to implementers (§9).
func sortedShares(shares []ShareEntry) []ShareEntry {
	out := append([]ShareEntry(nil), shares...)
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Recipient[:]) < string(out[j].Recipient[:])
	})
	return out
}

// Encode produces the canonical byte encoding of m.
func (m *Manifest) Encode() []byte {
	w := codec.NewWriter()
	w.WriteBytes(m.ID[:])
	w.WriteString(m.Name)

	shares := sortedShares(m.Shares)
	w.WriteUint32(uint32(len(shares)))
	for _, s := range shares {
		w.WriteBytes(s.Recipient[:])
		w.WriteUint8(uint8(s.Principal.Role))
		w.WriteBytes(s.Principal.Identity[:])
		w.WriteBytes(s.Share[:])
	}

	w.WriteLink(m.Entry)
	w.WriteLink(m.Pins)
	w.WriteOptionalLink(m.Previous)
	w.WriteString(m.Version)
	return w.Bytes()
}

// Hash returns the Link addressing m (manifests are stored as plaintext
// blobs; they are never encrypted).
func (m *Manifest) Hash() codec.Link {
	return codec.Link{
		Codec:  codec.CodecManifest,
		Hash:   codec.Sum(m.Encode()),
		Format: codec.FormatSingle,
	}
}

// DecodeManifest is the inverse of Manifest.Encode.
func DecodeManifest(b []byte) (*Manifest, error) {
	r := codec.NewReader(b)
	idBytes, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	if len(idBytes) != 16 {
		return nil, fmt.Errorf("bucketdag: manifest id must be 16 bytes: %w", bucketerr.ErrMalformed)
	}
	m := &Manifest{}
	copy(m.ID[:], idBytes)

	m.Name, err = r.ReadString()
	if err != nil {
		return nil, err
	}

	shareCount, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	m.Shares = make([]ShareEntry, 0, shareCount)
	var prevRecipient []byte
	for i := uint32(0); i < shareCount; i++ {
		recipientBytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		if len(recipientBytes) != 32 {
			return nil, fmt.Errorf("bucketdag: share recipient must be 32 bytes: %w", bucketerr.ErrMalformed)
		}
		if i > 0 && string(recipientBytes) <= string(prevRecipient) {
			return nil, fmt.Errorf("bucketdag: shares not in canonical order: %w", bucketerr.ErrMalformed)
		}
		prevRecipient = recipientBytes

		role, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		identityBytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		if len(identityBytes) != 32 {
			return nil, fmt.Errorf("bucketdag: principal identity must be 32 bytes: %w", bucketerr.ErrMalformed)
		}
		shareBytes, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		if len(shareBytes) != keyshare.Size {
			return nil, fmt.Errorf("bucketdag: share must be %d bytes: %w", keyshare.Size, bucketerr.ErrMalformed)
		}

		var entry ShareEntry
		copy(entry.Recipient[:], recipientBytes)
		entry.Principal.Role = Role(role)
		copy(entry.Principal.Identity[:], identityBytes)
		copy(entry.Share[:], shareBytes)
		m.Shares = append(m.Shares, entry)
	}

	entry, err := r.ReadLink()
	if err != nil {
		return nil, err
	}
	m.Entry = entry

	pins, err := r.ReadLink()
	if err != nil {
		return nil, err
	}
	m.Pins = pins

	m.Previous, err = r.ReadOptionalLink()
	if err != nil {
		return nil, err
	}

	m.Version, err = r.ReadString()
	if err != nil {
		return nil, err
	}

	if !r.Done() {
		return nil, fmt.Errorf("bucketdag: trailing bytes after manifest: %w", bucketerr.ErrMalformed)
	}
	return m, nil
}

// Validate checks the required manifest invariants from spec.md §4.5.
func Validate(m *Manifest) error {
	if len(m.Shares) == 0 {
		return fmt.Errorf("bucketdag: manifest has no shares: %w", bucketerr.ErrMalformed)
	}
	hasOwner := false
	for _, s := range m.Shares {
		if s.Principal.Role == RoleOwner {
			hasOwner = true
			break
		}
	}
	if !hasOwner {
		return fmt.Errorf("bucketdag: manifest has no owner: %w", bucketerr.ErrMalformed)
	}
	if m.Entry.Codec != codec.CodecNode || m.Entry.Format != codec.FormatSingle {
		return fmt.Errorf("bucketdag: manifest entry link malformed: %w", bucketerr.ErrMalformed)
	}
	if m.Pins.Codec != codec.CodecPins || m.Pins.Format != codec.FormatSequence {
		return fmt.Errorf("bucketdag: manifest pins link malformed: %w", bucketerr.ErrMalformed)
	}
	if !utf8.ValidString(m.Name) {
		return fmt.Errorf("bucketdag: manifest name not valid utf-8: %w", bucketerr.ErrMalformed)
	}
	return nil
}

// ValidateChain additionally checks that, when m.Previous is present, the
// caller-supplied previous Manifest shares m's bucket id. A nil previous
// with a non-nil m.Previous is rejected as ErrMalformed; a genesis m
// (Previous == nil) passes without looking at previous.
func ValidateChain(m *Manifest, previous *Manifest) error {
	if m.Previous == nil {
		return nil
	}
	if previous == nil {
		return fmt.Errorf("bucketdag: previous manifest not supplied for validation: %w", bucketerr.ErrMalformed)
	}
	if previous.ID != m.ID {
		return fmt.Errorf("bucketdag: previous manifest has different bucket id: %w", bucketerr.ErrMalformed)
	}
	return nil
}

// FindShare returns the ShareEntry for recipient, if present.
func (m *Manifest) FindShare(recipient identity.PublicKey) (ShareEntry, bool) {
	for _, s := range m.Shares {
		if s.Recipient == recipient {
			return s, true
		}
	}
	return ShareEntry{}, false
}

// HasPrincipal reports whether pk is a recipient of m's shares - the
// provenance check multi-hop verification requires before applying an
// announced update (spec.md §4.8).
func (m *Manifest) HasPrincipal(pk identity.PublicKey) bool {
	_, ok := m.FindShare(pk)
	return ok
}
