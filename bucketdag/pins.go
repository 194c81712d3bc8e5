package bucketdag

import (
	"context"
	"fmt"
	"sort"

	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/secret"
)

// BlobGetter is the minimal read capability Build needs: fetch an
// already-available blob by the Link addressing it. This is a narrower
// view of store.BlobStore so that package bucketdag never has to import
// package store; any BlobStore satisfies it structurally.
type BlobGetter interface {
	Get(ctx context.Context, link codec.Link) ([]byte, error)
}

// Pins is the set of hashes a bucket version promises to retain locally:
// the transitive closure of everything reachable from a Manifest's entry,
// plus the entry itself.
type Pins struct {
	Hashes []codec.Hash // ascending, deduplicated
}

// Build walks the Node DAG rooted at entryLink (decrypted with
// entrySecret, then each child Dir link with the secret recorded beside
// it) and returns the deduplicated set of every encountered hash: every
// Node blob and every file blob.
func Build(ctx context.Context, entryLink codec.Link, entrySecret secret.Secret, blobs BlobGetter) (*Pins, error) {
	type frame struct {
		link   codec.Link
		secret secret.Secret
	}

	seen := make(map[codec.Hash]struct{})
	queue := []frame{{entryLink, entrySecret}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := seen[cur.link.Hash]; ok {
			continue
		}
		seen[cur.link.Hash] = struct{}{}

		sealed, err := blobs.Get(ctx, cur.link)
		if err != nil {
			return nil, fmt.Errorf("bucketdag: fetch node %s: %w", cur.link.Hash, err)
		}
		node, err := DecryptDecode(sealed, cur.secret)
		if err != nil {
			return nil, fmt.Errorf("bucketdag: decode node %s: %w", cur.link.Hash, err)
		}

		for _, e := range node.Entries {
			switch e.Link.Kind {
			case KindDir:
				queue = append(queue, frame{e.Link.Link, e.Link.Secret})
			case KindData:
				seen[e.Link.Link.Hash] = struct{}{}
			default:
				return nil, fmt.Errorf("bucketdag: unknown node link kind in %s: %w", cur.link.Hash, bucketerr.ErrMalformed)
			}
		}
	}

	hashes := make([]codec.Hash, 0, len(seen))
	for h := range seen {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })
	return &Pins{Hashes: hashes}, nil
}

// EncodeSeq renders p as the concatenation of its 32-byte hashes in
// ascending order - the bit-exact Pins hash-sequence format from spec.md §6.
func EncodeSeq(p *Pins) []byte {
	out := make([]byte, 0, len(p.Hashes)*codec.HashSize)
	for _, h := range p.Hashes {
		out = append(out, h[:]...)
	}
	return out
}

// DecodeSeq is the inverse of EncodeSeq.
func DecodeSeq(b []byte) (*Pins, error) {
	if len(b)%codec.HashSize != 0 {
		return nil, fmt.Errorf("bucketdag: pins sequence length %d not a multiple of %d: %w", len(b), codec.HashSize, bucketerr.ErrMalformed)
	}
	n := len(b) / codec.HashSize
	p := &Pins{Hashes: make([]codec.Hash, n)}
	for i := 0; i < n; i++ {
		copy(p.Hashes[i][:], b[i*codec.HashSize:(i+1)*codec.HashSize])
	}
	return p, nil
}

// Link returns the content-addressed Link for p.
func Link(p *Pins) codec.Link {
	return codec.Link{
		Codec:  codec.CodecPins,
		Hash:   codec.Sum(EncodeSeq(p)),
		Format: codec.FormatSequence,
	}
}

// Contains reports whether h is a member of p.
func (p *Pins) Contains(h codec.Hash) bool {
	i := sort.Search(len(p.Hashes), func(i int) bool { return !p.Hashes[i].Less(h) })
	return i < len(p.Hashes) && p.Hashes[i] == h
}
