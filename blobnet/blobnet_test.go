package blobnet

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/peerproto"
	"github.com/jaxbuckets/buckets/store"
)

type pipeDialer struct {
	handler *peerproto.Handler
	caller  identity.PublicKey
}

func (d *pipeDialer) Dial(_ context.Context, _ identity.PublicKey) (peerproto.Stream, error) {
	client, server := net.Pipe()
	go d.handler.HandleStream(context.Background(), d.caller, server)
	return client, nil
}

func TestClientFetchesBlobFromServer(t *testing.T) {
	ctx := context.Background()
	remote := store.NewMemBlobStore(nil)
	link, err := remote.Put(ctx, codec.CodecNode, codec.FormatSingle, []byte("hello"))
	require.NoError(t, err)

	srv := NewServer(remote)
	h := &peerproto.Handler{}
	srv.Bind(h)

	caller := identity.PublicKey{1}
	client := NewClient(peerproto.NewClient(&pipeDialer{handler: h, caller: caller}))

	data, err := client.FetchBlob(ctx, link, identity.PublicKey{2})
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestClientFetchMissingBlobReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	remote := store.NewMemBlobStore(nil)
	srv := NewServer(remote)
	h := &peerproto.Handler{}
	srv.Bind(h)

	client := NewClient(peerproto.NewClient(&pipeDialer{handler: h}))

	missing := codec.Link{Codec: codec.CodecNode, Hash: codec.Sum([]byte("nope")), Format: codec.FormatSingle}
	_, err := client.FetchBlob(ctx, missing, identity.PublicKey{})
	require.Error(t, err)
}

// TestStoreGetFromUsesBlobnetClient exercises the full stack: a local
// MemBlobStore with no copy of a blob falls through to a blobnet.Client
// talking to a remote MemBlobStore over the peerproto/net.Pipe harness.
func TestStoreGetFromUsesBlobnetClient(t *testing.T) {
	ctx := context.Background()
	remoteBlobs := store.NewMemBlobStore(nil)
	link, err := remoteBlobs.Put(ctx, codec.CodecNode, codec.FormatSingle, []byte("remote bytes"))
	require.NoError(t, err)

	srv := NewServer(remoteBlobs)
	h := &peerproto.Handler{}
	srv.Bind(h)

	client := NewClient(peerproto.NewClient(&pipeDialer{handler: h}))
	localBlobs := store.NewMemBlobStore(client)

	data, err := localBlobs.GetFrom(ctx, link, identity.PublicKey{})
	require.NoError(t, err)
	require.Equal(t, []byte("remote bytes"), data)

	// second read is served locally, no peer round trip needed.
	data2, err := localBlobs.Get(ctx, link)
	require.NoError(t, err)
	require.Equal(t, []byte("remote bytes"), data2)
}
