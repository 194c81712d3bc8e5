package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
)

// LevelBlobStore is a BlobStore backed by a github.com/syndtr/goleveldb
// handle, keyed by hash. This is the teacher's own storage dependency,
// generalized from UTXO/index storage to content-addressed blob storage.
type LevelBlobStore struct {
	db      *leveldb.DB
	fetcher PeerFetcher
}

// OpenLevelBlobStore opens (creating if absent) a goleveldb database at path.
func OpenLevelBlobStore(path string, fetcher PeerFetcher) (*LevelBlobStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open blob db %s: %w", path, err)
	}
	return &LevelBlobStore{db: db, fetcher: fetcher}, nil
}

// Close releases the underlying database handle.
func (s *LevelBlobStore) Close() error {
	return s.db.Close()
}

func blobKey(h codec.Hash) []byte {
	key := make([]byte, 0, len(h)+1)
	key = append(key, 'b')
	key = append(key, h[:]...)
	return key
}

// Put stores data keyed by its hash, idempotently.
func (s *LevelBlobStore) Put(_ context.Context, c codec.Codec, f codec.Format, data []byte) (codec.Link, error) {
	h := codec.Sum(data)
	key := blobKey(h)
	if has, err := s.db.Has(key, nil); err != nil {
		return codec.Link{}, fmt.Errorf("store: check blob %s: %w", h, err)
	} else if !has {
		if err := s.db.Put(key, data, nil); err != nil {
			return codec.Link{}, fmt.Errorf("store: put blob %s: %w", h, err)
		}
	}
	return codec.Link{Codec: c, Hash: h, Format: f}, nil
}

// Get returns the bytes addressed by link.
func (s *LevelBlobStore) Get(_ context.Context, link codec.Link) ([]byte, error) {
	data, err := s.db.Get(blobKey(link.Hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, fmt.Errorf("store: blob %s: %w", link.Hash, bucketerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get blob %s: %w", link.Hash, err)
	}
	return data, nil
}

// GetFrom returns the bytes addressed by link, fetching from peer if absent.
func (s *LevelBlobStore) GetFrom(ctx context.Context, link codec.Link, peer identity.PublicKey) ([]byte, error) {
	if data, err := s.Get(ctx, link); err == nil {
		return data, nil
	}
	if s.fetcher == nil {
		return nil, fmt.Errorf("store: blob %s not local and no peer fetcher configured: %w", link.Hash, bucketerr.ErrNotFound)
	}
	data, err := s.fetcher.FetchBlob(ctx, link, peer)
	if err != nil {
		return nil, fmt.Errorf("store: fetch %s from %s: %w", link.Hash, peer, err)
	}
	if _, err := s.Put(ctx, link.Codec, link.Format, data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetSequence enumerates and fetches every blob named by the hash
// sequence addressed by link, fetching the sequence blob itself and any
// missing member from peer.
func (s *LevelBlobStore) GetSequence(ctx context.Context, link codec.Link, peer identity.PublicKey) ([][]byte, error) {
	raw, err := s.GetFrom(ctx, link, peer)
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
		data, err := s.GetFrom(ctx, item, peer)
		if err != nil {
			return nil, fmt.Errorf("store: fetch sequence member %s: %w", h, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// LevelMetaStore is a MetadataStore backed by goleveldb, serialized with
// package codec's canonical writer/reader so the metadata rows use the
// same encoding discipline as the DAG entities.
type LevelMetaStore struct {
	db *leveldb.DB
	mu sync.Mutex // guards AdvanceCursor's read-modify-write across the single process
}

// OpenLevelMetaStore opens (creating if absent) a goleveldb database at path.
func OpenLevelMetaStore(path string) (*LevelMetaStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open meta db %s: %w", path, err)
	}
	return &LevelMetaStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *LevelMetaStore) Close() error {
	return s.db.Close()
}

func bucketKey(id bucketdag.BucketID) []byte {
	key := make([]byte, 0, len(id)+1)
	key = append(key, 'k')
	key = append(key, id[:]...)
	return key
}

func peerKey(id bucketdag.BucketID, peer identity.PublicKey) []byte {
	key := make([]byte, 0, len(id)+len(peer)+1)
	key = append(key, 'p')
	key = append(key, id[:]...)
	key = append(key, peer[:]...)
	return key
}

func peerPrefix(id bucketdag.BucketID) []byte {
	key := make([]byte, 0, len(id)+1)
	key = append(key, 'p')
	key = append(key, id[:]...)
	return key
}

func encodeRow(row BucketRow) []byte {
	w := codec.NewWriter()
	w.WriteBytes(row.ID[:])
	w.WriteString(row.Name)
	w.WriteOptionalLink(row.CurrentLink)
	w.WriteUint64(uint64(row.CreatedAt.UnixNano()))
	if row.SyncedAt != nil {
		w.WriteUint8(1)
		w.WriteUint64(uint64(row.SyncedAt.UnixNano()))
	} else {
		w.WriteUint8(0)
	}
	w.WriteUint8(uint8(row.Status))
	return w.Bytes()
}

func decodeRow(b []byte) (BucketRow, error) {
	r := codec.NewReader(b)
	idBytes, err := r.ReadBytes()
	if err != nil {
		return BucketRow{}, err
	}
	var row BucketRow
	copy(row.ID[:], idBytes)

	row.Name, err = r.ReadString()
	if err != nil {
		return BucketRow{}, err
	}
	row.CurrentLink, err = r.ReadOptionalLink()
	if err != nil {
		return BucketRow{}, err
	}
	createdAt, err := r.ReadUint64()
	if err != nil {
		return BucketRow{}, err
	}
	row.CreatedAt = time.Unix(0, int64(createdAt))

	hasSynced, err := r.ReadUint8()
	if err != nil {
		return BucketRow{}, err
	}
	if hasSynced == 1 {
		syncedAt, err := r.ReadUint64()
		if err != nil {
			return BucketRow{}, err
		}
		t := time.Unix(0, int64(syncedAt))
		row.SyncedAt = &t
	}
	status, err := r.ReadUint8()
	if err != nil {
		return BucketRow{}, err
	}
	row.Status = SyncStatus(status)
	return row, nil
}

// UpsertBucket inserts or replaces the row for row.ID.
func (s *LevelMetaStore) UpsertBucket(_ context.Context, row BucketRow) error {
	return s.db.Put(bucketKey(row.ID), encodeRow(row), nil)
}

// GetBucket returns the row for id.
func (s *LevelMetaStore) GetBucket(_ context.Context, id bucketdag.BucketID) (BucketRow, error) {
	raw, err := s.db.Get(bucketKey(id), nil)
	if err == leveldb.ErrNotFound {
		return BucketRow{}, fmt.Errorf("store: bucket %s: %w", id, bucketerr.ErrNotFound)
	}
	if err != nil {
		return BucketRow{}, fmt.Errorf("store: get bucket %s: %w", id, err)
	}
	return decodeRow(raw)
}

// ListBuckets returns every known bucket row.
func (s *LevelMetaStore) ListBuckets(_ context.Context) ([]BucketRow, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{'k'}), nil)
	defer iter.Release()
	var out []BucketRow
	for iter.Next() {
		row, err := decodeRow(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, iter.Error()
}

// AdvanceCursor compare-and-swaps the current link for id from old to new.
func (s *LevelMetaStore) AdvanceCursor(ctx context.Context, id bucketdag.BucketID, old, new *codec.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.GetBucket(ctx, id)
	if err != nil {
		return err
	}
	if !linkEqual(row.CurrentLink, old) {
		return fmt.Errorf("store: advance cursor for %s: %w", id, bucketerr.ErrConflict)
	}
	row.CurrentLink = new
	return s.db.Put(bucketKey(id), encodeRow(row), nil)
}

// ListPeers returns the known peers of bucket id.
func (s *LevelMetaStore) ListPeers(_ context.Context, id bucketdag.BucketID) ([]identity.PublicKey, error) {
	iter := s.db.NewIterator(util.BytesPrefix(peerPrefix(id)), nil)
	defer iter.Release()
	var out []identity.PublicKey
	prefixLen := len(peerPrefix(id))
	for iter.Next() {
		key := iter.Key()
		var pk identity.PublicKey
		copy(pk[:], key[prefixLen:])
		out = append(out, pk)
	}
	return out, iter.Error()
}

// AddPeer records peer as known for bucket id.
func (s *LevelMetaStore) AddPeer(_ context.Context, id bucketdag.BucketID, peer identity.PublicKey) error {
	return s.db.Put(peerKey(id, peer), []byte{1}, nil)
}

// RecordSyncStatus updates the bucket's last sync outcome.
func (s *LevelMetaStore) RecordSyncStatus(ctx context.Context, id bucketdag.BucketID, status SyncStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, err := s.GetBucket(ctx, id)
	if err != nil {
		return err
	}
	row.Status = status
	row.SyncedAt = &at
	return s.db.Put(bucketKey(id), encodeRow(row), nil)
}
