package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jaxbuckets/buckets/blobnet"
	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/config"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/internal/peerdial"
	"github.com/jaxbuckets/buckets/keyshare"
	"github.com/jaxbuckets/buckets/peerproto"
	"github.com/jaxbuckets/buckets/secret"
	"github.com/jaxbuckets/buckets/store"
	"github.com/jaxbuckets/buckets/syncmgr"
)

// client bundles the stores and identity every bucketctl subcommand needs.
// It opens the same on-disk LevelDB directories bucketd uses, operating
// directly on shared state rather than through an RPC surface - the
// SPEC_FULL.md-chosen architecture for this CLI (see DESIGN.md).
type client struct {
	cfg *config.Config
	id  *identity.Identity

	blobs store.BlobStore
	meta  store.MetadataStore
	mgr   *syncmgr.Manager
}

func newClient() (*client, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, err
	}
	id, err := identity.LoadEnvelope(cfg.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("bucketctl: load identity (run bucketd at least once first): %w", err)
	}

	peerAddrs, err := peerdial.ParsePeers(cfg.Peers)
	if err != nil {
		return nil, err
	}
	dialer := peerdial.NewTCPDialer(id.Public(), peerAddrs, "")
	peerClient := peerproto.NewClient(dialer)

	blobs, err := store.OpenLevelBlobStore(cfg.DataDir+"/blobs", blobnet.NewClient(peerClient))
	if err != nil {
		return nil, fmt.Errorf("bucketctl: open blob store: %w", err)
	}
	meta, err := store.OpenLevelMetaStore(cfg.DataDir + "/meta")
	if err != nil {
		return nil, fmt.Errorf("bucketctl: open meta store: %w", err)
	}

	return &client{
		cfg:   cfg,
		id:    id,
		blobs: blobs,
		meta:  meta,
		mgr:   syncmgr.NewManager(blobs, meta, peerClient),
	}, nil
}

// loadBucket fetches the manifest at id's current cursor and recovers the
// entry secret from this identity's own share, the way any long-lived
// CLI session must since Create only hands back the entry secret once.
func (c *client) loadBucket(ctx context.Context, id bucketdag.BucketID) (*bucketdag.Manifest, secret.Secret, codec.Link, error) {
	row, err := c.meta.GetBucket(ctx, id)
	if err != nil {
		return nil, secret.Secret{}, codec.Link{}, fmt.Errorf("bucketctl: %s: %w", id, err)
	}
	if row.CurrentLink == nil {
		return nil, secret.Secret{}, codec.Link{}, fmt.Errorf("bucketctl: bucket %s has no synced version yet", id)
	}

	data, err := c.blobs.Get(ctx, *row.CurrentLink)
	if err != nil {
		return nil, secret.Secret{}, codec.Link{}, fmt.Errorf("bucketctl: fetch manifest %s: %w", row.CurrentLink.Hash, err)
	}
	m, err := bucketdag.DecodeManifest(data)
	if err != nil {
		return nil, secret.Secret{}, codec.Link{}, fmt.Errorf("bucketctl: decode manifest: %w", err)
	}

	entry, ok := m.FindShare(c.id.Public())
	if !ok {
		return nil, secret.Secret{}, codec.Link{}, fmt.Errorf("bucketctl: %w: this identity holds no share of bucket %s", bucketerr.ErrUnauthorized, id)
	}
	entrySecret, err := keyshare.Unwrap(entry.Share, c.id.Secret())
	if err != nil {
		return nil, secret.Secret{}, codec.Link{}, fmt.Errorf("bucketctl: unwrap share: %w", err)
	}

	return m, entrySecret, *row.CurrentLink, nil
}

// commit persists newManifest as bucket id's new current version: puts
// the manifest blob, compare-and-swaps the metadata cursor, and
// best-effort pushes the update to every known peer. Push failures are
// logged, not returned - the same fire-and-forget posture Announce itself
// has.
func (c *client) commit(ctx context.Context, id bucketdag.BucketID, oldLink codec.Link, newManifest *bucketdag.Manifest) error {
	newLink, err := c.blobs.Put(ctx, codec.CodecManifest, codec.FormatSingle, newManifest.Encode())
	if err != nil {
		return fmt.Errorf("bucketctl: store manifest: %w", err)
	}
	if err := c.meta.AdvanceCursor(ctx, id, &oldLink, &newLink); err != nil {
		if errors.Is(err, bucketerr.ErrConflict) {
			return fmt.Errorf("bucketctl: %w: bucket %s changed concurrently, retry", err, id)
		}
		return fmt.Errorf("bucketctl: advance cursor: %w", err)
	}
	if err := c.mgr.Push(ctx, id); err != nil {
		fmt.Printf("warning: push to peers failed: %v\n", err)
	}
	return nil
}
