// Package store implements the two external collaborators spec.md treats
// as out of scope: a content-addressed blob store and a bucket/peer
// metadata index. Both ship an in-memory implementation (tests, and the
// sync manager's local cache in front of a peer) and a
// github.com/syndtr/goleveldb-backed implementation for a runnable daemon,
// following the teacher's own practice of pairing protocol packages with a
// concrete goleveldb-backed store.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
)

// BlobStore is the content-addressed blob transport the sync manager and
// bucket ops consume (spec.md §6). Put is idempotent: inserting the same
// bytes twice returns the same Link both times.
type BlobStore interface {
	Put(ctx context.Context, c codec.Codec, f codec.Format, data []byte) (codec.Link, error)
	Get(ctx context.Context, link codec.Link) ([]byte, error)
	GetFrom(ctx context.Context, link codec.Link, peer identity.PublicKey) ([]byte, error)
	GetSequence(ctx context.Context, link codec.Link, peer identity.PublicKey) ([][]byte, error)
}

// PeerFetcher is satisfied by anything that can retrieve one blob from a
// specific remote peer; MemBlobStore and LevelBlobStore use it to satisfy
// GetFrom when a hash is not yet local.
type PeerFetcher interface {
	FetchBlob(ctx context.Context, link codec.Link, peer identity.PublicKey) ([]byte, error)
}

// MemBlobStore is a concurrent-safe in-memory BlobStore.
type MemBlobStore struct {
	mu      sync.RWMutex
	blobs   map[codec.Hash][]byte
	fetcher PeerFetcher // optional; nil means GetFrom can only serve local hits
}

// NewMemBlobStore returns an empty in-memory blob store. fetcher may be nil.
func NewMemBlobStore(fetcher PeerFetcher) *MemBlobStore {
	return &MemBlobStore{blobs: make(map[codec.Hash][]byte), fetcher: fetcher}
}

// Put stores data, returning the Link addressing it. Duplicate inserts of
// identical bytes return an identical Link.
func (m *MemBlobStore) Put(_ context.Context, c codec.Codec, f codec.Format, data []byte) (codec.Link, error) {
	h := codec.Sum(data)
	m.mu.Lock()
	if _, ok := m.blobs[h]; !ok {
		stored := make([]byte, len(data))
		copy(stored, data)
		m.blobs[h] = stored
	}
	m.mu.Unlock()
	return codec.Link{Codec: c, Hash: h, Format: f}, nil
}

// Get returns the bytes addressed by link if present locally.
func (m *MemBlobStore) Get(_ context.Context, link codec.Link) ([]byte, error) {
	m.mu.RLock()
	data, ok := m.blobs[link.Hash]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: blob %s: %w", link.Hash, bucketerr.ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// GetFrom returns the bytes addressed by link, fetching from peer if the
// blob is not already local.
func (m *MemBlobStore) GetFrom(ctx context.Context, link codec.Link, peer identity.PublicKey) ([]byte, error) {
	if data, err := m.Get(ctx, link); err == nil {
		return data, nil
	}
	if m.fetcher == nil {
		return nil, fmt.Errorf("store: blob %s not local and no peer fetcher configured: %w", link.Hash, bucketerr.ErrNotFound)
	}
	data, err := m.fetcher.FetchBlob(ctx, link, peer)
	if err != nil {
		return nil, fmt.Errorf("store: fetch %s from %s: %w", link.Hash, peer, err)
	}
	if _, err := m.Put(ctx, link.Codec, link.Format, data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetSequence enumerates the ordered hash sequence addressed by link and
// returns each referenced blob's bytes, fetching the sequence blob itself
// and any missing member from peer. link.Format must be codec.FormatSequence.
func (m *MemBlobStore) GetSequence(ctx context.Context, link codec.Link, peer identity.PublicKey) ([][]byte, error) {
	raw, err := m.GetFrom(ctx, link, peer)
	if err != nil {
		return nil, err
	}
	hashes, err := decodeHashSequence(raw)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		item := codec.Link{Codec: codec.CodecNode, Hash: h, Format: codec.FormatSingle}
		data, err := m.GetFrom(ctx, item, peer)
		if err != nil {
			return nil, fmt.Errorf("store: fetch sequence member %s: %w", h, err)
		}
		out = append(out, data)
	}
	return out, nil
}

func decodeHashSequence(b []byte) ([]codec.Hash, error) {
	if len(b)%codec.HashSize != 0 {
		return nil, fmt.Errorf("store: hash sequence length %d not a multiple of %d: %w", len(b), codec.HashSize, bucketerr.ErrMalformed)
	}
	n := len(b) / codec.HashSize
	out := make([]codec.Hash, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], b[i*codec.HashSize:(i+1)*codec.HashSize])
	}
	return out, nil
}
