package blobnet

import (
	"context"
	"errors"

	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/peerproto"
)

// localStore is the subset of store.BlobStore the Server needs: a local-
// only read, never reaching out to a peer itself (a Server answering
// FetchBlob by fetching from yet another peer would turn this into the
// replication/gossip behavior spec.md §1 excludes).
type localStore interface {
	Get(ctx context.Context, link codec.Link) ([]byte, error)
}

// Server answers inbound FetchBlob requests from a local store.BlobStore.
// Bind registers it on a peerproto.Handler alongside syncmgr's callbacks.
type Server struct {
	Blobs localStore
}

// NewServer returns a Server serving blobs out of blobs.
func NewServer(blobs localStore) *Server {
	return &Server{Blobs: blobs}
}

// Bind sets h.OnFetchBlob to s.HandleFetchBlob.
func (s *Server) Bind(h *peerproto.Handler) {
	h.OnFetchBlob = s.HandleFetchBlob
}

// HandleFetchBlob answers one inbound FetchBlob request.
func (s *Server) HandleFetchBlob(ctx context.Context, remote identity.PublicKey, link codec.Link) ([]byte, bool, error) {
	data, err := s.Blobs.Get(ctx, link)
	if err != nil {
		if errors.Is(err, bucketerr.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	log.Debugf("serving blob %s (%d bytes) to %s", link.Hash, len(data), remote)
	return data, true, nil
}
