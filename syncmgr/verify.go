// Package syncmgr owns the per-bucket cursor and the three flows that
// advance it: pulling from a peer, pushing to peers, and handling inbound
// announces. The multi-hop verification walk is grounded on the
// teacher's chain-walk idiom (walking a linked structure by hash,
// bounded, caching the first fetch) generalized from a fixed-depth
// reorg search to a bucket manifest chain.
package syncmgr

import (
	"context"
	"fmt"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/store"
)

// MaxHistoryDepth bounds the multi-hop verification walk. A var, not a
// const, solely so config.Config.MaxHistoryDepth can override it for
// tests that need to exercise DepthExceeded without manufacturing 100
// manifests; production deployments should never change it from 100.
var MaxHistoryDepth = 100

// Outcome is the result category of multi-hop verification.
type Outcome int

const (
	OutcomeFork Outcome = iota
	OutcomeDepthExceeded
	OutcomeVerified
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFork:
		return "fork"
	case OutcomeDepthExceeded:
		return "depth exceeded"
	case OutcomeVerified:
		return "verified"
	default:
		return "unknown"
	}
}

// VerifyResult is the outcome of verifyMultiHop. NewManifest is the
// manifest at NewLink, cached from the depth-0 fetch so apply never
// downloads it a second time.
type VerifyResult struct {
	Outcome     Outcome
	Depth       int
	NewLink     codec.Link
	NewManifest *bucketdag.Manifest
}

func linkEqualPtr(a, b *codec.Link) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// fetchManifest decodes the manifest addressed by link, fetching from
// peer if it is not already local.
func fetchManifest(ctx context.Context, blobs store.BlobStore, link codec.Link, peer identity.PublicKey) (*bucketdag.Manifest, error) {
	data, err := blobs.GetFrom(ctx, link, peer)
	if err != nil {
		return nil, fmt.Errorf("syncmgr: fetch manifest %s from %s: %w", link.Hash, peer, err)
	}
	m, err := bucketdag.DecodeManifest(data)
	if err != nil {
		return nil, fmt.Errorf("syncmgr: decode manifest %s: %w", link.Hash, err)
	}
	return m, nil
}

// verifyMultiHop walks peer's claimed new-link chain backwards via
// Previous, looking for the local cursor. Only peer is ever queried - no
// fan-out during verification (spec.md §4.8 property (b)). The first
// manifest fetched (depth 0, at newLink) is cached in the result so a
// successful apply reuses it instead of fetching a second time.
func verifyMultiHop(ctx context.Context, blobs store.BlobStore, peer identity.PublicKey, bucketID bucketdag.BucketID, newLink codec.Link, curLink *codec.Link) (*VerifyResult, error) {
	cursor := newLink
	var first *bucketdag.Manifest

	for depth := 0; depth < MaxHistoryDepth; depth++ {
		m, err := fetchManifest(ctx, blobs, cursor, peer)
		if err != nil {
			return nil, err
		}
		if depth == 0 {
			first = m
		}
		if m.ID != bucketID {
			return &VerifyResult{Outcome: OutcomeFork}, nil
		}
		if m.Previous == nil {
			// A genesis manifest terminates the chain with no
			// predecessor. That only linearly extends a local cursor
			// that is itself absent (curLink == nil, e.g. a bucket
			// known only by id/peers, never yet synced); with a non-nil
			// local cursor the chain has ended at a genesis without
			// passing L_cur, which is the literal Fork case.
			if curLink == nil {
				return &VerifyResult{
					Outcome:     OutcomeVerified,
					Depth:       depth,
					NewLink:     newLink,
					NewManifest: first,
				}, nil
			}
			return &VerifyResult{Outcome: OutcomeFork}, nil
		}
		if linkEqualPtr(m.Previous, curLink) {
			return &VerifyResult{
				Outcome:     OutcomeVerified,
				Depth:       depth,
				NewLink:     newLink,
				NewManifest: first,
			}, nil
		}
		cursor = *m.Previous
	}
	return &VerifyResult{Outcome: OutcomeDepthExceeded}, nil
}

// checkProvenance requires peer to be named in m.Shares (spec.md §4.8's
// provenance check, run after verification and before apply).
func checkProvenance(m *bucketdag.Manifest, peer identity.PublicKey) error {
	if !m.HasPrincipal(peer) {
		return fmt.Errorf("syncmgr: %s not in shares of manifest for bucket %s: %w", peer, m.ID, bucketerr.ErrUnauthorized)
	}
	return nil
}
