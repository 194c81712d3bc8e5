package syncmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketops"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/store"
)

// remoteFetcher is a store.PeerFetcher reading straight from a remote
// BlobStore, standing in for the real peer transport in these unit tests
// so verifyMultiHop can be exercised without a network.
type remoteFetcher struct {
	remote store.BlobStore
}

func (f *remoteFetcher) FetchBlob(ctx context.Context, link codec.Link, _ identity.PublicKey) ([]byte, error) {
	return f.remote.Get(ctx, link)
}

func putManifest(t *testing.T, blobs store.BlobStore, m *bucketdag.Manifest) codec.Link {
	t.Helper()
	link, err := blobs.Put(context.Background(), codec.CodecManifest, codec.FormatSingle, m.Encode())
	require.NoError(t, err)
	return link
}

func mustIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

func TestVerifyMultiHopSingleHop(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m0, entrySecret, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	l0 := putManifest(t, remoteBlobs, m0)

	mime := "text/plain"
	m1, err := bucketops.Insert(ctx, remoteBlobs, m0, entrySecret, "/hello.txt", []byte("hi"), &mime)
	require.NoError(t, err)
	l1 := putManifest(t, remoteBlobs, m1)

	localBlobs := store.NewMemBlobStore(&remoteFetcher{remote: remoteBlobs})
	peer := mustIdentity(t).Public()

	result, err := verifyMultiHop(ctx, localBlobs, peer, m0.ID, l1, &l0)
	require.NoError(t, err)
	require.Equal(t, OutcomeVerified, result.Outcome)
	require.Equal(t, 0, result.Depth)
	require.Equal(t, l1, result.NewLink)
	require.Equal(t, m1.Encode(), result.NewManifest.Encode())
}

func TestVerifyMultiHopTwoHopReusesFirstFetch(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m0, entrySecret, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	l0 := putManifest(t, remoteBlobs, m0)

	mimeA := "text/plain"
	m1, err := bucketops.Insert(ctx, remoteBlobs, m0, entrySecret, "/a.txt", []byte("a"), &mimeA)
	require.NoError(t, err)
	l1 := putManifest(t, remoteBlobs, m1)

	mimeB := "text/plain"
	m2, err := bucketops.Insert(ctx, remoteBlobs, m1, entrySecret, "/b.txt", []byte("b"), &mimeB)
	require.NoError(t, err)
	l2 := putManifest(t, remoteBlobs, m2)

	counting := &countingFetcher{remote: remoteBlobs}
	localBlobs := store.NewMemBlobStore(counting)
	peer := mustIdentity(t).Public()

	result, err := verifyMultiHop(ctx, localBlobs, peer, m0.ID, l2, &l0)
	require.NoError(t, err)
	require.Equal(t, OutcomeVerified, result.Outcome)
	require.Equal(t, 1, result.Depth)
	require.Equal(t, l2, result.NewLink)
	require.Equal(t, m2.Encode(), result.NewManifest.Encode())
	// exactly two manifest fetches: l2 then l1. A third (re-fetching l2 at
	// apply time) would mean the depth-0 cache was not reused.
	require.Equal(t, 2, counting.calls)
}

type countingFetcher struct {
	remote store.BlobStore
	calls  int
}

func (f *countingFetcher) FetchBlob(ctx context.Context, link codec.Link, _ identity.PublicKey) ([]byte, error) {
	f.calls++
	return f.remote.Get(ctx, link)
}

func TestVerifyMultiHopFork(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m0, _, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	l0 := putManifest(t, remoteBlobs, m0)

	other, _, err := bucketops.Create(ctx, remoteBlobs, "other", owner)
	require.NoError(t, err)
	lOther := putManifest(t, remoteBlobs, other)

	localBlobs := store.NewMemBlobStore(&remoteFetcher{remote: remoteBlobs})
	peer := mustIdentity(t).Public()

	result, err := verifyMultiHop(ctx, localBlobs, peer, m0.ID, lOther, &l0)
	require.NoError(t, err)
	require.Equal(t, OutcomeFork, result.Outcome)
}

func TestVerifyMultiHopDepthExceeded(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m, entrySecret, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	l0 := putManifest(t, remoteBlobs, m)

	current := m
	currentSecret := entrySecret
	var newest codec.Link
	for i := 0; i < MaxHistoryDepth+1; i++ {
		mime := "text/plain"
		next, err := bucketops.Insert(ctx, remoteBlobs, current, currentSecret, "/f.txt", []byte{byte(i)}, &mime)
		require.NoError(t, err)
		newest = putManifest(t, remoteBlobs, next)
		current = next
	}

	localBlobs := store.NewMemBlobStore(&remoteFetcher{remote: remoteBlobs})
	peer := mustIdentity(t).Public()

	result, err := verifyMultiHop(ctx, localBlobs, peer, m.ID, newest, &l0)
	require.NoError(t, err)
	require.Equal(t, OutcomeDepthExceeded, result.Outcome)
}

func TestVerifyMultiHopGenesisFromNilCursor(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m, _, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	l := putManifest(t, remoteBlobs, m)

	localBlobs := store.NewMemBlobStore(&remoteFetcher{remote: remoteBlobs})
	peer := mustIdentity(t).Public()

	result, err := verifyMultiHop(ctx, localBlobs, peer, m.ID, l, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeVerified, result.Outcome)
	require.Equal(t, 0, result.Depth)
}

func TestCheckProvenanceRejectsAbsentPeer(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)
	m, _, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)

	stranger := mustIdentity(t).Public()
	require.Error(t, checkProvenance(m, stranger))
	require.NoError(t, checkProvenance(m, owner.Public()))
}
