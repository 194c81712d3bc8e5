package syncmgr

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketops"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/peerproto"
	"github.com/jaxbuckets/buckets/store"
)

func newManager(fetcher store.PeerFetcher) (*Manager, store.BlobStore, store.MetadataStore) {
	blobs := store.NewMemBlobStore(fetcher)
	meta := store.NewMemMetaStore()
	return NewManager(blobs, meta, nil), blobs, meta
}

func TestHandleAnnounceBootstrapsUnknownBucket(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m, _, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	link := putManifest(t, remoteBlobs, m)

	mgr, _, meta := newManager(&remoteFetcher{remote: remoteBlobs})

	require.NoError(t, mgr.HandleAnnounce(ctx, owner.Public(), m.ID, link, nil))

	row, err := meta.GetBucket(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, "b", row.Name)
	require.NotNil(t, row.CurrentLink)
	require.True(t, row.CurrentLink.Equal(link))
	require.Equal(t, store.StatusSynced, row.Status)

	peers, err := meta.ListPeers(ctx, m.ID)
	require.NoError(t, err)
	require.Contains(t, peers, owner.Public())
}

func TestHandleAnnounceBootstrapRejectsUnauthorizedPeer(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)
	stranger := mustIdentity(t)

	m, _, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	link := putManifest(t, remoteBlobs, m)

	mgr, _, meta := newManager(&remoteFetcher{remote: remoteBlobs})
	err = mgr.HandleAnnounce(ctx, stranger.Public(), m.ID, link, nil)
	require.Error(t, err)

	_, err = meta.GetBucket(ctx, m.ID)
	require.Error(t, err)
}

func TestHandleAnnounceSingleHopApply(t *testing.T) {
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

	mgr, _, meta := newManager(&remoteFetcher{remote: remoteBlobs})
	require.NoError(t, meta.UpsertBucket(ctx, store.BucketRow{ID: m0.ID, Name: "b", CurrentLink: &l0, CreatedAt: time.Now()}))

	require.NoError(t, mgr.HandleAnnounce(ctx, owner.Public(), m0.ID, l1, &l0))

	row, err := meta.GetBucket(ctx, m0.ID)
	require.NoError(t, err)
	require.True(t, row.CurrentLink.Equal(l1))
	require.Equal(t, store.StatusSynced, row.Status)
}

func TestHandleAnnounceFork(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)

	m0, _, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	l0 := putManifest(t, remoteBlobs, m0)

	other, _, err := bucketops.Create(ctx, remoteBlobs, "other", owner)
	require.NoError(t, err)
	lOther := putManifest(t, remoteBlobs, other)

	mgr, _, meta := newManager(&remoteFetcher{remote: remoteBlobs})
	require.NoError(t, meta.UpsertBucket(ctx, store.BucketRow{ID: m0.ID, Name: "b", CurrentLink: &l0, CreatedAt: time.Now()}))

	err = mgr.HandleAnnounce(ctx, owner.Public(), m0.ID, lOther, &l0)
	require.Error(t, err)

	row, err := meta.GetBucket(ctx, m0.ID)
	require.NoError(t, err)
	require.True(t, row.CurrentLink.Equal(l0), "cursor must not move on fork")
	require.Equal(t, store.StatusFailed, row.Status)
}

func TestHandleAnnounceUnauthorized(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t)
	stranger := mustIdentity(t)

	m0, entrySecret, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	l0 := putManifest(t, remoteBlobs, m0)

	mime := "text/plain"
	m1, err := bucketops.Insert(ctx, remoteBlobs, m0, entrySecret, "/hello.txt", []byte("hi"), &mime)
	require.NoError(t, err)
	l1 := putManifest(t, remoteBlobs, m1)

	mgr, _, meta := newManager(&remoteFetcher{remote: remoteBlobs})
	require.NoError(t, meta.UpsertBucket(ctx, store.BucketRow{ID: m0.ID, Name: "b", CurrentLink: &l0, CreatedAt: time.Now()}))

	err = mgr.HandleAnnounce(ctx, stranger.Public(), m0.ID, l1, &l0)
	require.Error(t, err)

	row, err := meta.GetBucket(ctx, m0.ID)
	require.NoError(t, err)
	require.True(t, row.CurrentLink.Equal(l0))
	require.Equal(t, store.StatusFailed, row.Status)
}

func TestHandlePingAndFetchBucket(t *testing.T) {
	ctx := context.Background()
	mgr, _, meta := newManager(nil)

	var unknown bucketdag.BucketID
	status, err := mgr.HandlePing(ctx, identity.PublicKey{}, unknown, nil)
	require.NoError(t, err)
	require.Equal(t, "not_found", status.String())

	link, err := mgr.HandleFetchBucket(ctx, identity.PublicKey{}, unknown)
	require.NoError(t, err)
	require.Nil(t, link)

	owner := mustIdentity(t)
	remoteBlobs := store.NewMemBlobStore(nil)
	m, _, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	l := putManifest(t, remoteBlobs, m)
	require.NoError(t, meta.UpsertBucket(ctx, store.BucketRow{ID: m.ID, Name: "b", CurrentLink: &l, CreatedAt: time.Now()}))

	status, err = mgr.HandlePing(ctx, identity.PublicKey{}, m.ID, nil)
	require.NoError(t, err)
	require.Equal(t, "ahead", status.String())

	status, err = mgr.HandlePing(ctx, identity.PublicKey{}, m.ID, &l)
	require.NoError(t, err)
	require.Equal(t, "in_sync", status.String())

	got, err := mgr.HandleFetchBucket(ctx, identity.PublicKey{}, m.ID)
	require.NoError(t, err)
	require.True(t, got.Equal(l))
}

// pipeDialer routes Dial calls to the Handler registered for the target
// peer, connecting the two ends with net.Pipe - the same harness used by
// package peerproto's own tests.
type pipeDialer struct {
	handlers map[identity.PublicKey]*peerproto.Handler
	caller   identity.PublicKey // identity the dialing side authenticates as
}

func (d *pipeDialer) Dial(_ context.Context, peer identity.PublicKey) (peerproto.Stream, error) {
	h := d.handlers[peer]
	client, server := net.Pipe()
	go h.HandleStream(context.Background(), d.caller, server)
	return client, nil
}

func TestPullFetchesGenesisFromAheadPeer(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	remoteMeta := store.NewMemMetaStore()
	owner := mustIdentity(t)

	m, _, err := bucketops.Create(ctx, remoteBlobs, "b", owner)
	require.NoError(t, err)
	l := putManifest(t, remoteBlobs, m)
	require.NoError(t, remoteMeta.UpsertBucket(ctx, store.BucketRow{ID: m.ID, Name: "b", CurrentLink: &l, CreatedAt: time.Now()}))
	remoteMgr := NewManager(remoteBlobs, remoteMeta, nil)
	local := mustIdentity(t)

	dialer := &pipeDialer{
		handlers: map[identity.PublicKey]*peerproto.Handler{owner.Public(): remoteMgr.Handler()},
		caller:   local.Public(),
	}
	client := peerproto.NewClient(dialer)

	localBlobs := store.NewMemBlobStore(&remoteFetcher{remote: remoteBlobs})
	localMeta := store.NewMemMetaStore()
	require.NoError(t, localMeta.UpsertBucket(ctx, store.BucketRow{ID: m.ID, Name: "b", CreatedAt: time.Now()}))
	require.NoError(t, localMeta.AddPeer(ctx, m.ID, owner.Public()))
	localMgr := NewManager(localBlobs, localMeta, client)

	require.NoError(t, localMgr.Pull(ctx, m.ID))

	row, err := localMeta.GetBucket(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, row.CurrentLink)
	require.True(t, row.CurrentLink.Equal(l))
	require.Equal(t, store.StatusSynced, row.Status)
}

func TestPullNoAheadPeerFails(t *testing.T) {
	ctx := context.Background()
	mgr, _, meta := newManager(nil)
	var id bucketdag.BucketID
	require.NoError(t, meta.UpsertBucket(ctx, store.BucketRow{ID: id, Name: "b", CreatedAt: time.Now()}))
	err := mgr.Pull(ctx, id)
	require.Error(t, err)
}

func TestPushAnnouncesToAllPeers(t *testing.T) {
	ctx := context.Background()
	localBlobs := store.NewMemBlobStore(nil)
	owner := mustIdentity(t) // the pusher's own identity; must hold a share for provenance

	m, _, err := bucketops.Create(ctx, localBlobs, "b", owner)
	require.NoError(t, err)
	l := putManifest(t, localBlobs, m)

	recipientBlobs := store.NewMemBlobStore(&remoteFetcher{remote: localBlobs})
	recipientMeta := store.NewMemMetaStore()
	recipientMgr := NewManager(recipientBlobs, recipientMeta, nil)
	recipient := mustIdentity(t)

	dialer := &pipeDialer{
		handlers: map[identity.PublicKey]*peerproto.Handler{recipient.Public(): recipientMgr.Handler()},
		caller:   owner.Public(),
	}
	client := peerproto.NewClient(dialer)

	localMeta := store.NewMemMetaStore()
	require.NoError(t, localMeta.UpsertBucket(ctx, store.BucketRow{ID: m.ID, Name: "b", CurrentLink: &l, CreatedAt: time.Now()}))
	require.NoError(t, localMeta.AddPeer(ctx, m.ID, recipient.Public()))
	localMgr := NewManager(localBlobs, localMeta, client)

	require.NoError(t, localMgr.Push(ctx, m.ID))

	row, err := recipientMeta.GetBucket(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, row.CurrentLink.Equal(l))
}
