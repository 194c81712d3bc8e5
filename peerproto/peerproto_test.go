package peerproto

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/wire"
)

// pipeDialer hands out one side of a net.Pipe per Dial call, surfacing the
// other side via the channel supplied at construction - enough to drive
// Client against a Handler in tests without a real network listener.
type pipeDialer struct {
	server chan net.Conn
}

func newPipeDialer() *pipeDialer { return &pipeDialer{server: make(chan net.Conn, 8)} }

func (d *pipeDialer) Dial(_ context.Context, _ identity.PublicKey) (Stream, error) {
	client, server := net.Pipe()
	d.server <- server
	return client, nil
}

func TestClientPingAgainstHandler(t *testing.T) {
	dialer := newPipeDialer()
	client := NewClient(dialer)

	bucketID := bucketdag.BucketID{1, 2, 3}
	handler := &Handler{
		OnPing: func(_ context.Context, _ identity.PublicKey, gotID bucketdag.BucketID, _ *codec.Link) (wire.Status, error) {
			require.Equal(t, bucketID, gotID)
			return wire.StatusAhead, nil
		},
	}

	done := make(chan error, 1)
	go func() {
		server := <-dialer.server
		done <- handler.HandleStream(context.Background(), identity.PublicKey{}, server)
	}()

	remote, err := identity.Generate()
	require.NoError(t, err)
	status, err := client.Ping(context.Background(), remote.Public(), bucketID, nil)
	require.NoError(t, err)
	require.Equal(t, wire.StatusAhead, status)
	require.NoError(t, <-done)
}

func TestClientFetchBucketAgainstHandler(t *testing.T) {
	dialer := newPipeDialer()
	client := NewClient(dialer)

	bucketID := bucketdag.BucketID{9}
	link := codec.Link{Codec: codec.CodecManifest, Hash: codec.Sum([]byte("m")), Format: codec.FormatSingle}
	handler := &Handler{
		OnFetchBucket: func(_ context.Context, _ identity.PublicKey, gotID bucketdag.BucketID) (*codec.Link, error) {
			require.Equal(t, bucketID, gotID)
			return &link, nil
		},
	}

	done := make(chan error, 1)
	go func() {
		server := <-dialer.server
		done <- handler.HandleStream(context.Background(), identity.PublicKey{}, server)
	}()

	remote, err := identity.Generate()
	require.NoError(t, err)
	got, err := client.FetchBucket(context.Background(), remote.Public(), bucketID)
	require.NoError(t, err)
	require.Equal(t, link, *got)
	require.NoError(t, <-done)
}

func TestClientAnnounceAgainstHandler(t *testing.T) {
	dialer := newPipeDialer()
	client := NewClient(dialer)

	bucketID := bucketdag.BucketID{4}
	newLink := codec.Link{Codec: codec.CodecManifest, Hash: codec.Sum([]byte("new")), Format: codec.FormatSingle}
	received := make(chan bucketdag.BucketID, 1)
	handler := &Handler{
		OnAnnounce: func(_ context.Context, _ identity.PublicKey, gotID bucketdag.BucketID, gotLink codec.Link, _ *codec.Link) error {
			require.Equal(t, newLink, gotLink)
			received <- gotID
			return nil
		},
	}

	done := make(chan error, 1)
	go func() {
		server := <-dialer.server
		done <- handler.HandleStream(context.Background(), identity.PublicKey{}, server)
	}()

	remote, err := identity.Generate()
	require.NoError(t, err)
	require.NoError(t, client.Announce(context.Background(), remote.Public(), bucketID, newLink, nil))
	require.Equal(t, bucketID, <-received)
	require.NoError(t, <-done)
}

func TestClientFetchBlobAgainstHandler(t *testing.T) {
	dialer := newPipeDialer()
	client := NewClient(dialer)

	link := codec.Link{Codec: codec.CodecNode, Hash: codec.Sum([]byte("n")), Format: codec.FormatSingle}
	handler := &Handler{
		OnFetchBlob: func(_ context.Context, _ identity.PublicKey, gotLink codec.Link) ([]byte, bool, error) {
			require.Equal(t, link, gotLink)
			return []byte("blob bytes"), true, nil
		},
	}

	done := make(chan error, 1)
	go func() {
		server := <-dialer.server
		done <- handler.HandleStream(context.Background(), identity.PublicKey{}, server)
	}()

	remote, err := identity.Generate()
	require.NoError(t, err)
	data, err := client.FetchBlob(context.Background(), remote.Public(), link)
	require.NoError(t, err)
	require.Equal(t, []byte("blob bytes"), data)
	require.NoError(t, <-done)
}

func TestClientFetchBlobNotFound(t *testing.T) {
	dialer := newPipeDialer()
	client := NewClient(dialer)

	link := codec.Link{Codec: codec.CodecNode, Hash: codec.Sum([]byte("missing")), Format: codec.FormatSingle}
	handler := &Handler{
		OnFetchBlob: func(_ context.Context, _ identity.PublicKey, _ codec.Link) ([]byte, bool, error) {
			return nil, false, nil
		},
	}

	done := make(chan error, 1)
	go func() {
		server := <-dialer.server
		done <- handler.HandleStream(context.Background(), identity.PublicKey{}, server)
	}()

	remote, err := identity.Generate()
	require.NoError(t, err)
	_, err = client.FetchBlob(context.Background(), remote.Public(), link)
	require.Error(t, err)
	require.NoError(t, <-done)
}

func TestHandlerRejectsUnregisteredCallback(t *testing.T) {
	dialer := newPipeDialer()
	client := NewClient(dialer)
	handler := &Handler{}

	done := make(chan error, 1)
	go func() {
		server := <-dialer.server
		done <- handler.HandleStream(context.Background(), identity.PublicKey{}, server)
	}()

	remote, err := identity.Generate()
	require.NoError(t, err)
	_, pingErr := client.Ping(context.Background(), remote.Public(), bucketdag.BucketID{}, nil)
	require.Error(t, pingErr)
	require.Error(t, <-done)
}
