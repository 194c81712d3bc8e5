package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
)

// SyncStatus records the outcome of the most recent sync attempt for a bucket.
type SyncStatus uint8

const (
	StatusUnknown SyncStatus = iota
	StatusSynced
	StatusFailed
)

func (s SyncStatus) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BucketRow is one row of the buckets table (spec.md §6).
type BucketRow struct {
	ID          bucketdag.BucketID
	Name        string
	CurrentLink *codec.Link
	CreatedAt   time.Time
	SyncedAt    *time.Time
	Status      SyncStatus
}

// MetadataStore is the durable key-value index of buckets and peers
// spec.md §6 treats as external. AdvanceCursor is the sole linearization
// point for cursor progress: it compares-and-swaps the current link,
// failing with bucketerr.ErrConflict if another writer moved it first.
type MetadataStore interface {
	UpsertBucket(ctx context.Context, row BucketRow) error
	GetBucket(ctx context.Context, id bucketdag.BucketID) (BucketRow, error)
	ListBuckets(ctx context.Context) ([]BucketRow, error)
	AdvanceCursor(ctx context.Context, id bucketdag.BucketID, old, new *codec.Link) error
	ListPeers(ctx context.Context, id bucketdag.BucketID) ([]identity.PublicKey, error)
	AddPeer(ctx context.Context, id bucketdag.BucketID, peer identity.PublicKey) error
	RecordSyncStatus(ctx context.Context, id bucketdag.BucketID, status SyncStatus, at time.Time) error
}

// MemMetaStore is an in-memory MetadataStore used by tests and as a
// reference implementation.
type MemMetaStore struct {
	mu      sync.Mutex
	buckets map[bucketdag.BucketID]BucketRow
	peers   map[bucketdag.BucketID]map[identity.PublicKey]struct{}
}

// NewMemMetaStore returns an empty in-memory metadata store.
func NewMemMetaStore() *MemMetaStore {
	return &MemMetaStore{
		buckets: make(map[bucketdag.BucketID]BucketRow),
		peers:   make(map[bucketdag.BucketID]map[identity.PublicKey]struct{}),
	}
}

func linkEqual(a, b *codec.Link) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// UpsertBucket inserts or replaces the row for row.ID.
func (s *MemMetaStore) UpsertBucket(_ context.Context, row BucketRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[row.ID] = row
	if _, ok := s.peers[row.ID]; !ok {
		s.peers[row.ID] = make(map[identity.PublicKey]struct{})
	}
	return nil
}

// GetBucket returns the row for id.
func (s *MemMetaStore) GetBucket(_ context.Context, id bucketdag.BucketID) (BucketRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.buckets[id]
	if !ok {
		return BucketRow{}, fmt.Errorf("store: bucket %s: %w", id, bucketerr.ErrNotFound)
	}
	return row, nil
}

// ListBuckets returns every known bucket row.
func (s *MemMetaStore) ListBuckets(_ context.Context) ([]BucketRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BucketRow, 0, len(s.buckets))
	for _, row := range s.buckets {
		out = append(out, row)
	}
	return out, nil
}

// AdvanceCursor compare-and-swaps the current link for id from old to new.
func (s *MemMetaStore) AdvanceCursor(_ context.Context, id bucketdag.BucketID, old, new *codec.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.buckets[id]
	if !ok {
		return fmt.Errorf("store: bucket %s: %w", id, bucketerr.ErrNotFound)
	}
	if !linkEqual(row.CurrentLink, old) {
		return fmt.Errorf("store: advance cursor for %s: %w", id, bucketerr.ErrConflict)
	}
	row.CurrentLink = new
	s.buckets[id] = row
	return nil
}

// ListPeers returns the known peers of bucket id.
func (s *MemMetaStore) ListPeers(_ context.Context, id bucketdag.BucketID) ([]identity.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.peers[id]
	out := make([]identity.PublicKey, 0, len(set))
	for pk := range set {
		out = append(out, pk)
	}
	return out, nil
}

// AddPeer records peer as known for bucket id.
func (s *MemMetaStore) AddPeer(_ context.Context, id bucketdag.BucketID, peer identity.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[id]; !ok {
		s.peers[id] = make(map[identity.PublicKey]struct{})
	}
	s.peers[id][peer] = struct{}{}
	return nil
}

// RecordSyncStatus updates the bucket's last sync outcome.
func (s *MemMetaStore) RecordSyncStatus(_ context.Context, id bucketdag.BucketID, status SyncStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.buckets[id]
	if !ok {
		return fmt.Errorf("store: bucket %s: %w", id, bucketerr.ErrNotFound)
	}
	row.Status = status
	row.SyncedAt = &at
	s.buckets[id] = row
	return nil
}
