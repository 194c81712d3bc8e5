package bucketops

import (
	"context"
	"fmt"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/keyshare"
	"github.com/jaxbuckets/buckets/secret"
	"github.com/jaxbuckets/buckets/store"
)

// Bucket bundles a blob store with the current manifest and its unwrapped
// entry secret, so callers don't thread the store and secret through every
// call (mirrors how the teacher's ChannelState bundles storage with
// operations behind one receiver type).
type Bucket struct {
	Store       store.BlobStore
	Manifest    *bucketdag.Manifest
	EntrySecret secret.Secret
}

// NewBucket creates a genesis bucket named name, owned by owner, and mounts
// it.
func NewBucket(ctx context.Context, blobs store.BlobStore, name string, owner *identity.Identity) (*Bucket, error) {
	m, entrySecret, err := Create(ctx, blobs, name, owner)
	if err != nil {
		return nil, err
	}
	return &Bucket{Store: blobs, Manifest: m, EntrySecret: entrySecret}, nil
}

// Mount wraps an already-resolved manifest and entry secret as a Bucket,
// the path taken when loading an existing bucket from the metadata store
// and unwrapping its owner's (or another principal's) share.
func Mount(blobs store.BlobStore, m *bucketdag.Manifest, entrySecret secret.Secret) *Bucket {
	return &Bucket{Store: blobs, Manifest: m, EntrySecret: entrySecret}
}

// Insert writes data at path and advances b.Manifest to the result.
func (b *Bucket) Insert(ctx context.Context, path string, data []byte, mime *string) (*bucketdag.Manifest, error) {
	m, err := Insert(ctx, b.Store, b.Manifest, b.EntrySecret, path, data, mime)
	if err != nil {
		return nil, err
	}
	b.Manifest = m
	return m, nil
}

// Lookup returns the decrypted bytes and metadata of the file at path.
func (b *Bucket) Lookup(ctx context.Context, path string) ([]byte, bucketdag.Metadata, error) {
	return Lookup(ctx, b.Store, b.Manifest, b.EntrySecret, path)
}

// List returns the names of every entry directly under path.
func (b *Bucket) List(ctx context.Context, path string) ([]string, error) {
	return List(ctx, b.Store, b.Manifest, b.EntrySecret, path)
}

// Grant shares the bucket with recipient at role and advances b.Manifest.
func (b *Bucket) Grant(recipient identity.PublicKey, role bucketdag.Role) (*bucketdag.Manifest, error) {
	m, err := Grant(b.Manifest, b.EntrySecret, recipient, role)
	if err != nil {
		return nil, err
	}
	b.Manifest = m
	return m, nil
}

// Unwrap recovers entrySecret for id from m's shares using me's secret key,
// the step a peer takes before it can Mount a manifest it received via sync.
func Unwrap(m *bucketdag.Manifest, me *identity.Identity) (secret.Secret, error) {
	share, ok := m.FindShare(me.Public())
	if !ok {
		return secret.Secret{}, fmt.Errorf("bucketops: no share for identity %s in manifest %s", me.Public(), m.ID)
	}
	return keyshare.Unwrap(share.Share, me.Secret())
}
