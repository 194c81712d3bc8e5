// Package blobnet is the minimal peer-addressed blob-fetch collaborator
// spec.md treats as external (§6): Client satisfies store.PeerFetcher by
// issuing a single FetchBlob request per call over peerproto, and Server
// answers the inbound side from a local store.BlobStore. Deliberately
// excluded: bulk replication, gossip, range fetches, or any notion of
// which peers hold which blobs beyond what the caller already knows -
// those stay out of scope per spec.md §1.
package blobnet

import (
	"context"
	"fmt"

	"github.com/jaxbuckets/buckets/bucketlog"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/peerproto"
)

var log = bucketlog.Disabled

// UseLogger sets the package-wide logger, following the teacher's
// package-scoped logger injection pattern used throughout this repo.
func UseLogger(logger bucketlog.Logger) {
	log = logger
}

// blobClient is the subset of *peerproto.Client this package depends on,
// named as an interface so tests can stand in a fake without a real
// stream transport.
type blobClient interface {
	FetchBlob(ctx context.Context, peer identity.PublicKey, link codec.Link) ([]byte, error)
}

// Client fetches single blobs from specific peers on demand. It holds no
// local cache of its own - store.MemBlobStore/LevelBlobStore wrap it to
// add that.
type Client struct {
	peer blobClient
}

// NewClient returns a Client issuing FetchBlob requests over peer.
func NewClient(peer *peerproto.Client) *Client {
	return &Client{peer: peer}
}

// FetchBlob satisfies store.PeerFetcher.
func (c *Client) FetchBlob(ctx context.Context, link codec.Link, peer identity.PublicKey) ([]byte, error) {
	data, err := c.peer.FetchBlob(ctx, peer, link)
	if err != nil {
		return nil, fmt.Errorf("blobnet: fetch %s from %s: %w", link.Hash, peer, err)
	}
	log.Debugf("fetched blob %s (%d bytes) from %s", link.Hash, len(data), peer)
	return data, nil
}
