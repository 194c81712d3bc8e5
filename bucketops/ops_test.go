package bucketops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/store"
)

func mustIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

func TestCreateProducesValidGenesisManifest(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m, entrySecret, err := Create(ctx, blobs, "photos", owner)
	require.NoError(t, err)
	require.NoError(t, bucketdag.Validate(m))
	require.Nil(t, m.Previous)
	require.True(t, m.HasPrincipal(owner.Public()))

	names, err := List(ctx, blobs, m, entrySecret, "/")
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestInsertThenLookup(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m, entrySecret, err := Create(ctx, blobs, "photos", owner)
	require.NoError(t, err)

	mime := "text/plain"
	m2, err := Insert(ctx, blobs, m, entrySecret, "/notes/todo.txt", []byte("buy milk"), &mime)
	require.NoError(t, err)
	require.NotNil(t, m2.Previous)
	require.Equal(t, m.ID, m2.ID)
	require.Equal(t, m.Shares, m2.Shares)

	data, meta, err := Lookup(ctx, blobs, m2, entrySecret, "/notes/todo.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("buy milk"), data)
	require.NotNil(t, meta.MimeType)
	require.Equal(t, "text/plain", *meta.MimeType)

	names, err := List(ctx, blobs, m2, entrySecret, "/notes")
	require.NoError(t, err)
	require.Equal(t, []string{"todo.txt"}, names)

	topNames, err := List(ctx, blobs, m2, entrySecret, "/")
	require.NoError(t, err)
	require.Equal(t, []string{"notes"}, topNames)
}

func TestInsertRootSecretStaysFixed(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m, entrySecret, err := Create(ctx, blobs, "photos", owner)
	require.NoError(t, err)

	m2, err := Insert(ctx, blobs, m, entrySecret, "/a.txt", []byte("1"), nil)
	require.NoError(t, err)
	m3, err := Insert(ctx, blobs, m2, entrySecret, "/b.txt", []byte("2"), nil)
	require.NoError(t, err)

	// entrySecret must still open the latest root node directly.
	_, _, err = Lookup(ctx, blobs, m3, entrySecret, "/a.txt")
	require.NoError(t, err)
	_, _, err = Lookup(ctx, blobs, m3, entrySecret, "/b.txt")
	require.NoError(t, err)
}

func TestLookupMissingFile(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m, entrySecret, err := Create(ctx, blobs, "photos", owner)
	require.NoError(t, err)

	_, _, err = Lookup(ctx, blobs, m, entrySecret, "/missing.txt")
	require.Error(t, err)
}

func TestLookupRejectsDirectoryPath(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m, entrySecret, err := Create(ctx, blobs, "photos", owner)
	require.NoError(t, err)
	m2, err := Insert(ctx, blobs, m, entrySecret, "/a/b.txt", []byte("x"), nil)
	require.NoError(t, err)

	_, _, err = Lookup(ctx, blobs, m2, entrySecret, "/a")
	require.Error(t, err)
}

func TestSplitPathRejectsEmptyComponent(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m, entrySecret, err := Create(ctx, blobs, "photos", owner)
	require.NoError(t, err)

	_, err = Insert(ctx, blobs, m, entrySecret, "/a//b.txt", []byte("x"), nil)
	require.Error(t, err)
}

func TestGrantAppendsShareAndBumpsPrevious(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)
	viewer := mustIdentity(t)

	m, entrySecret, err := Create(ctx, blobs, "photos", owner)
	require.NoError(t, err)

	m2, err := Grant(m, entrySecret, viewer.Public(), bucketdag.RoleViewer)
	require.NoError(t, err)
	require.NotNil(t, m2.Previous)
	require.Len(t, m2.Shares, 2)
	require.True(t, m2.HasPrincipal(viewer.Public()))

	recovered, err := Unwrap(m2, viewer)
	require.NoError(t, err)
	require.Equal(t, entrySecret, recovered)
}

func TestBucketWrapperTracksManifest(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	b, err := NewBucket(ctx, blobs, "photos", owner)
	require.NoError(t, err)

	_, err = b.Insert(ctx, "/hello.txt", []byte("hi"), nil)
	require.NoError(t, err)

	data, _, err := b.Lookup(ctx, "/hello.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), data)

	viewer := mustIdentity(t)
	_, err = b.Grant(viewer.Public(), bucketdag.RoleViewer)
	require.NoError(t, err)
	require.True(t, b.Manifest.HasPrincipal(viewer.Public()))
}
