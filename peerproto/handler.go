package peerproto

import (
	"context"
	"fmt"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/wire"
)

// PingHandlerFunc answers an inbound Ping from remote.
type PingHandlerFunc func(ctx context.Context, remote identity.PublicKey, bucketID bucketdag.BucketID, current *codec.Link) (wire.Status, error)

// FetchBucketHandlerFunc answers an inbound FetchBucket from remote.
type FetchBucketHandlerFunc func(ctx context.Context, remote identity.PublicKey, bucketID bucketdag.BucketID) (*codec.Link, error)

// AnnounceHandlerFunc processes an inbound, fire-and-forget Announce from
// remote. Any error is logged by the handler loop, not returned to remote.
type AnnounceHandlerFunc func(ctx context.Context, remote identity.PublicKey, bucketID bucketdag.BucketID, newLink codec.Link, previous *codec.Link) error

// FetchBlobHandlerFunc answers an inbound blob fetch from remote. found is
// false when the local store has no copy of link.
type FetchBlobHandlerFunc func(ctx context.Context, remote identity.PublicKey, link codec.Link) (data []byte, found bool, err error)

// Handler dispatches one inbound stream per call to the registered
// callback for the message it carries. Callbacks are supplied by
// package syncmgr and package blobnet; Handler itself knows nothing about
// sync or storage semantics.
type Handler struct {
	OnPing        PingHandlerFunc
	OnFetchBucket FetchBucketHandlerFunc
	OnAnnounce    AnnounceHandlerFunc
	OnFetchBlob   FetchBlobHandlerFunc
}

// HandleStream reads exactly one message from s, dispatches it, and (for
// request/response messages) writes the reply. remote is the
// connection-authenticated identity the transport layer supplies.
func (h *Handler) HandleStream(ctx context.Context, remote identity.PublicKey, s Stream) error {
	msg, err := wire.ReadMessage(s)
	if err != nil {
		return fmt.Errorf("peerproto: read message from %s: %w", remote, err)
	}

	switch m := msg.(type) {
	case *wire.MsgPing:
		if h.OnPing == nil {
			return fmt.Errorf("peerproto: no ping handler registered: %w", bucketerr.ErrMalformed)
		}
		status, err := h.OnPing(ctx, remote, m.BucketID, m.CurrentLink)
		if err != nil {
			return fmt.Errorf("peerproto: handle ping from %s: %w", remote, err)
		}
		return wire.WriteMessage(s, &wire.MsgPingResp{Status: status})

	case *wire.MsgFetchBucket:
		if h.OnFetchBucket == nil {
			return fmt.Errorf("peerproto: no fetchbucket handler registered: %w", bucketerr.ErrMalformed)
		}
		link, err := h.OnFetchBucket(ctx, remote, m.BucketID)
		if err != nil {
			return fmt.Errorf("peerproto: handle fetchbucket from %s: %w", remote, err)
		}
		return wire.WriteMessage(s, &wire.MsgFetchBucketResp{CurrentLink: link})

	case *wire.MsgAnnounce:
		if h.OnAnnounce == nil {
			return fmt.Errorf("peerproto: no announce handler registered: %w", bucketerr.ErrMalformed)
		}
		log.Debugf("announce from %s for bucket %s", remote, m.BucketID)
		return h.OnAnnounce(ctx, remote, m.BucketID, m.NewLink, m.PreviousLink)

	case *wire.MsgFetchBlob:
		if h.OnFetchBlob == nil {
			return fmt.Errorf("peerproto: no fetchblob handler registered: %w", bucketerr.ErrMalformed)
		}
		data, found, err := h.OnFetchBlob(ctx, remote, m.Link)
		if err != nil {
			return fmt.Errorf("peerproto: handle fetchblob from %s: %w", remote, err)
		}
		return wire.WriteMessage(s, &wire.MsgFetchBlobResp{Found: found, Data: data})

	default:
		return fmt.Errorf("peerproto: unexpected message type %T from %s: %w", msg, remote, bucketerr.ErrMalformed)
	}
}
