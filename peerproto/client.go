package peerproto

import (
	"context"
	"fmt"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/bucketlog"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/wire"
)

var log = bucketlog.Disabled

// UseLogger sets the package-wide logger. Called once at startup by the
// daemon, following the teacher's package-scoped logger injection pattern.
func UseLogger(logger bucketlog.Logger) {
	log = logger
}

// Client issues Ping, FetchBucket, and Announce against remote peers over
// Streams obtained from a Dialer.
type Client struct {
	dialer Dialer
}

// NewClient returns a Client that dials peers via d.
func NewClient(d Dialer) *Client {
	return &Client{dialer: d}
}

func (c *Client) open(ctx context.Context, peer identity.PublicKey) (Stream, error) {
	s, err := c.dialer.Dial(ctx, peer)
	if err != nil {
		return nil, fmt.Errorf("peerproto: dial %s: %w", peer, bucketerr.ErrPeerUnreachable)
	}
	if dl, ok := deadlineFor(ctx); ok {
		if err := s.SetDeadline(dl); err != nil {
			s.Close()
			return nil, fmt.Errorf("peerproto: set deadline: %w", err)
		}
	}
	return s, nil
}

// Ping asks peer to compare its current link for bucketID against current.
func (c *Client) Ping(ctx context.Context, peer identity.PublicKey, bucketID bucketdag.BucketID, current *codec.Link) (wire.Status, error) {
	s, err := c.open(ctx, peer)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	if err := wire.WriteMessage(s, &wire.MsgPing{BucketID: bucketID, CurrentLink: current}); err != nil {
		return 0, fmt.Errorf("peerproto: send ping to %s: %w", peer, bucketerr.ErrTransportFailure)
	}
	msg, err := wire.ReadMessage(s)
	if err != nil {
		return 0, fmt.Errorf("peerproto: read pingresp from %s: %w", peer, bucketerr.ErrTransportFailure)
	}
	resp, ok := msg.(*wire.MsgPingResp)
	if !ok {
		return 0, fmt.Errorf("peerproto: expected pingresp from %s, got command %d: %w", peer, msg.Command(), bucketerr.ErrMalformed)
	}
	return resp.Status, nil
}

// FetchBucket asks peer for its current link for bucketID.
func (c *Client) FetchBucket(ctx context.Context, peer identity.PublicKey, bucketID bucketdag.BucketID) (*codec.Link, error) {
	s, err := c.open(ctx, peer)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := wire.WriteMessage(s, &wire.MsgFetchBucket{BucketID: bucketID}); err != nil {
		return nil, fmt.Errorf("peerproto: send fetchbucket to %s: %w", peer, bucketerr.ErrTransportFailure)
	}
	msg, err := wire.ReadMessage(s)
	if err != nil {
		return nil, fmt.Errorf("peerproto: read fetchbucketresp from %s: %w", peer, bucketerr.ErrTransportFailure)
	}
	resp, ok := msg.(*wire.MsgFetchBucketResp)
	if !ok {
		return nil, fmt.Errorf("peerproto: expected fetchbucketresp from %s, got command %d: %w", peer, msg.Command(), bucketerr.ErrMalformed)
	}
	return resp.CurrentLink, nil
}

// FetchBlob asks peer for the raw bytes addressed by link. It returns
// bucketerr.ErrNotFound if peer does not hold the blob.
func (c *Client) FetchBlob(ctx context.Context, peer identity.PublicKey, link codec.Link) ([]byte, error) {
	s, err := c.open(ctx, peer)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := wire.WriteMessage(s, &wire.MsgFetchBlob{Link: link}); err != nil {
		return nil, fmt.Errorf("peerproto: send fetchblob to %s: %w", peer, bucketerr.ErrTransportFailure)
	}
	msg, err := wire.ReadMessage(s)
	if err != nil {
		return nil, fmt.Errorf("peerproto: read fetchblobresp from %s: %w", peer, bucketerr.ErrTransportFailure)
	}
	resp, ok := msg.(*wire.MsgFetchBlobResp)
	if !ok {
		return nil, fmt.Errorf("peerproto: expected fetchblobresp from %s, got command %d: %w", peer, msg.Command(), bucketerr.ErrMalformed)
	}
	if !resp.Found {
		return nil, fmt.Errorf("peerproto: %s has no blob %s: %w", peer, link.Hash, bucketerr.ErrNotFound)
	}
	return resp.Data, nil
}

// Announce sends a fire-and-forget update notice to peer. No response is
// read and nothing is retried; dial and send failures are returned, and
// syncmgr's Push logs them and moves on to the next peer.
func (c *Client) Announce(ctx context.Context, peer identity.PublicKey, bucketID bucketdag.BucketID, newLink codec.Link, previous *codec.Link) error {
	s, err := c.open(ctx, peer)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := wire.WriteMessage(s, &wire.MsgAnnounce{BucketID: bucketID, NewLink: newLink, PreviousLink: previous}); err != nil {
		return fmt.Errorf("peerproto: send announce to %s: %w", peer, bucketerr.ErrTransportFailure)
	}
	return nil
}
