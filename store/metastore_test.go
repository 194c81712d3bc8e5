package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
)

func TestMemMetaStoreUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemMetaStore()

	id := bucketdag.BucketID{1}
	row := BucketRow{ID: id, Name: "photos", CreatedAt: time.Now()}
	require.NoError(t, s.UpsertBucket(ctx, row))

	got, err := s.GetBucket(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "photos", got.Name)
}

func TestMemMetaStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemMetaStore()
	_, err := s.GetBucket(ctx, bucketdag.BucketID{9})
	require.Error(t, err)
	require.True(t, errors.Is(err, bucketerr.ErrNotFound))
}

func TestMemMetaStoreListBuckets(t *testing.T) {
	ctx := context.Background()
	s := NewMemMetaStore()

	require.NoError(t, s.UpsertBucket(ctx, BucketRow{ID: bucketdag.BucketID{1}, Name: "a"}))
	require.NoError(t, s.UpsertBucket(ctx, BucketRow{ID: bucketdag.BucketID{2}, Name: "b"}))

	rows, err := s.ListBuckets(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestMemMetaStoreAdvanceCursorSucceedsThenConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewMemMetaStore()
	id := bucketdag.BucketID{3}
	require.NoError(t, s.UpsertBucket(ctx, BucketRow{ID: id}))

	linkA := codec.Link{Codec: codec.CodecManifest, Hash: codec.Sum([]byte("a")), Format: codec.FormatSingle}
	linkB := codec.Link{Codec: codec.CodecManifest, Hash: codec.Sum([]byte("b")), Format: codec.FormatSingle}

	require.NoError(t, s.AdvanceCursor(ctx, id, nil, &linkA))

	row, err := s.GetBucket(ctx, id)
	require.NoError(t, err)
	require.Equal(t, linkA, *row.CurrentLink)

	// Advancing from the stale nil baseline again must fail: another
	// writer already moved the cursor to linkA.
	err = s.AdvanceCursor(ctx, id, nil, &linkB)
	require.Error(t, err)
	require.True(t, errors.Is(err, bucketerr.ErrConflict))

	require.NoError(t, s.AdvanceCursor(ctx, id, &linkA, &linkB))
	row, err = s.GetBucket(ctx, id)
	require.NoError(t, err)
	require.Equal(t, linkB, *row.CurrentLink)
}

func TestMemMetaStoreAdvanceCursorMissingBucket(t *testing.T) {
	ctx := context.Background()
	s := NewMemMetaStore()
	link := codec.Link{Codec: codec.CodecManifest, Hash: codec.Sum([]byte("x")), Format: codec.FormatSingle}
	err := s.AdvanceCursor(ctx, bucketdag.BucketID{7}, nil, &link)
	require.Error(t, err)
	require.True(t, errors.Is(err, bucketerr.ErrNotFound))
}

func TestMemMetaStorePeers(t *testing.T) {
	ctx := context.Background()
	s := NewMemMetaStore()
	id := bucketdag.BucketID{4}
	require.NoError(t, s.UpsertBucket(ctx, BucketRow{ID: id}))

	var pk1, pk2 identity.PublicKey
	pk1[0] = 1
	pk2[0] = 2

	require.NoError(t, s.AddPeer(ctx, id, pk1))
	require.NoError(t, s.AddPeer(ctx, id, pk2))
	require.NoError(t, s.AddPeer(ctx, id, pk1)) // idempotent

	peers, err := s.ListPeers(ctx, id)
	require.NoError(t, err)
	require.ElementsMatch(t, []identity.PublicKey{pk1, pk2}, peers)
}

func TestMemMetaStoreRecordSyncStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemMetaStore()
	id := bucketdag.BucketID{5}
	require.NoError(t, s.UpsertBucket(ctx, BucketRow{ID: id}))

	now := time.Now()
	require.NoError(t, s.RecordSyncStatus(ctx, id, StatusFailed, now))

	row, err := s.GetBucket(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, row.Status)
	require.NotNil(t, row.SyncedAt)
	require.True(t, row.SyncedAt.Equal(now))
}
