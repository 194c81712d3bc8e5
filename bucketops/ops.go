// Package bucketops implements the operations a caller performs over a
// mounted local bucket: create, insert, lookup, list, grant. Each operation
// is a pure function over a store.BlobStore and the entry secret the caller
// already holds (unwrapped from their Manifest share); none of them announce
// to peers or touch the metadata store - that is syncmgr's job.
package bucketops

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/keyshare"
	"github.com/jaxbuckets/buckets/secret"
	"github.com/jaxbuckets/buckets/store"
)

// Version is the software-version tag stamped into manifests this package
// produces.
const Version = "buckets/0.1"

func fetchNode(ctx context.Context, blobs store.BlobStore, link codec.Link, key secret.Secret) (*bucketdag.Node, error) {
	sealed, err := blobs.Get(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("bucketops: fetch node %s: %w", link.Hash, err)
	}
	node, err := bucketdag.DecryptDecode(sealed, key)
	if err != nil {
		return nil, fmt.Errorf("bucketops: decode node %s: %w", link.Hash, err)
	}
	return node, nil
}

func putPins(ctx context.Context, blobs store.BlobStore, entryLink codec.Link, entrySecret secret.Secret) (codec.Link, error) {
	pins, err := bucketdag.Build(ctx, entryLink, entrySecret, blobs)
	if err != nil {
		return codec.Link{}, fmt.Errorf("bucketops: build pins: %w", err)
	}
	return blobs.Put(ctx, codec.CodecPins, codec.FormatSequence, bucketdag.EncodeSeq(pins))
}

// Create draws a fresh entry secret, writes an empty root Node encrypted
// under it, wraps the entry secret for owner, and returns the genesis
// manifest for a new bucket named name.
func Create(ctx context.Context, blobs store.BlobStore, name string, owner *identity.Identity) (*bucketdag.Manifest, secret.Secret, error) {
	entrySecret, err := secret.Generate()
	if err != nil {
		return nil, secret.Secret{}, fmt.Errorf("bucketops: draw entry secret: %w", err)
	}

	sealed, err := bucketdag.Encrypt(bucketdag.NewNode(), entrySecret)
	if err != nil {
		return nil, secret.Secret{}, fmt.Errorf("bucketops: seal root node: %w", err)
	}
	entryLink, err := blobs.Put(ctx, codec.CodecNode, codec.FormatSingle, sealed)
	if err != nil {
		return nil, secret.Secret{}, fmt.Errorf("bucketops: store root node: %w", err)
	}

	ownerPub := owner.Public()
	share, err := keyshare.Wrap(entrySecret, ownerPub)
	if err != nil {
		return nil, secret.Secret{}, fmt.Errorf("bucketops: wrap entry secret for owner: %w", err)
	}

	var id bucketdag.BucketID
	if _, err := rand.Read(id[:]); err != nil {
		return nil, secret.Secret{}, fmt.Errorf("bucketops: draw bucket id: %w", err)
	}

	pinsLink, err := putPins(ctx, blobs, entryLink, entrySecret)
	if err != nil {
		return nil, secret.Secret{}, err
	}

	m := &bucketdag.Manifest{
		ID:   id,
		Name: name,
		Shares: []bucketdag.ShareEntry{{
			Recipient: ownerPub,
			Principal: bucketdag.Principal{Role: bucketdag.RoleOwner, Identity: ownerPub},
			Share:     share,
		}},
		Entry:   entryLink,
		Pins:    pinsLink,
		Version: Version,
	}
	if err := bucketdag.Validate(m); err != nil {
		return nil, secret.Secret{}, err
	}
	return m, entrySecret, nil
}

// descend walks from node through parts, requiring every intermediate
// component to name a Dir entry, and returns the Node it resolves to.
func descend(ctx context.Context, blobs store.BlobStore, node *bucketdag.Node, parts []string) (*bucketdag.Node, error) {
	cur := node
	for _, name := range parts {
		link, ok := cur.Get(name)
		if !ok {
			return nil, fmt.Errorf("bucketops: %q: %w", name, bucketerr.ErrNotFound)
		}
		if link.Kind != bucketdag.KindDir {
			return nil, fmt.Errorf("bucketops: %q is not a directory: %w", name, bucketerr.ErrMalformed)
		}
		next, err := fetchNode(ctx, blobs, link.Link, link.Secret)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// insertInto copy-on-write rebuilds node (and every directory named by
// parts) so that the final component names a Data entry holding data. Every
// rebuilt directory draws a freshly generated secret; the caller is
// responsible for re-sealing the returned node under the secret it was
// already addressed by (the root's secret never changes - see Insert).
func insertInto(ctx context.Context, blobs store.BlobStore, node *bucketdag.Node, parts []string, data []byte, mime *string) (*bucketdag.Node, error) {
	name := parts[0]
	if len(parts) == 1 {
		fileSecret, err := secret.Generate()
		if err != nil {
			return nil, fmt.Errorf("bucketops: draw file secret: %w", err)
		}
		sealed, err := secret.Seal(fileSecret, data)
		if err != nil {
			return nil, fmt.Errorf("bucketops: seal file %q: %w", name, err)
		}
		fileLink, err := blobs.Put(ctx, codec.CodecNode, codec.FormatSingle, sealed)
		if err != nil {
			return nil, fmt.Errorf("bucketops: store file %q: %w", name, err)
		}
		return node.With(name, bucketdag.NodeLink{
			Kind:     bucketdag.KindData,
			Link:     fileLink,
			Secret:   fileSecret,
			Metadata: bucketdag.Metadata{MimeType: mime},
		}), nil
	}

	var child *bucketdag.Node
	if existing, ok := node.Get(name); ok {
		if existing.Kind != bucketdag.KindDir {
			return nil, fmt.Errorf("bucketops: %q is not a directory: %w", name, bucketerr.ErrMalformed)
		}
		var err error
		child, err = fetchNode(ctx, blobs, existing.Link, existing.Secret)
		if err != nil {
			return nil, err
		}
	} else {
		child = bucketdag.NewNode()
	}

	newChild, err := insertInto(ctx, blobs, child, parts[1:], data, mime)
	if err != nil {
		return nil, err
	}

	childSecret, err := secret.Generate()
	if err != nil {
		return nil, fmt.Errorf("bucketops: draw directory secret for %q: %w", name, err)
	}
	sealedChild, err := bucketdag.Encrypt(newChild, childSecret)
	if err != nil {
		return nil, fmt.Errorf("bucketops: seal directory %q: %w", name, err)
	}
	childLink, err := blobs.Put(ctx, codec.CodecNode, codec.FormatSingle, sealedChild)
	if err != nil {
		return nil, fmt.Errorf("bucketops: store directory %q: %w", name, err)
	}
	return node.With(name, bucketdag.NodeLink{Kind: bucketdag.KindDir, Link: childLink, Secret: childSecret}), nil
}

// Insert writes data at path inside current, copy-on-write along the way,
// and returns the resulting manifest. The entry secret is fixed for the
// life of the bucket (it is what shares wrap), so the root Node is
// re-sealed under entrySecret unchanged; every other rebuilt directory
// along path draws a fresh secret.
func Insert(ctx context.Context, blobs store.BlobStore, current *bucketdag.Manifest, entrySecret secret.Secret, path string, data []byte, mime *string) (*bucketdag.Manifest, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("bucketops: insert requires a non-root path: %w", bucketerr.ErrMalformed)
	}

	root, err := fetchNode(ctx, blobs, current.Entry, entrySecret)
	if err != nil {
		return nil, err
	}
	newRoot, err := insertInto(ctx, blobs, root, parts, data, mime)
	if err != nil {
		return nil, err
	}

	sealedRoot, err := bucketdag.Encrypt(newRoot, entrySecret)
	if err != nil {
		return nil, fmt.Errorf("bucketops: seal root node: %w", err)
	}
	entryLink, err := blobs.Put(ctx, codec.CodecNode, codec.FormatSingle, sealedRoot)
	if err != nil {
		return nil, fmt.Errorf("bucketops: store root node: %w", err)
	}
	pinsLink, err := putPins(ctx, blobs, entryLink, entrySecret)
	if err != nil {
		return nil, err
	}

	previous := current.Hash()
	m := &bucketdag.Manifest{
		ID:       current.ID,
		Name:     current.Name,
		Shares:   current.Shares,
		Entry:    entryLink,
		Pins:     pinsLink,
		Previous: &previous,
		Version:  current.Version,
	}
	if err := bucketdag.Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Lookup returns the decrypted bytes and metadata of the file at path
// inside current.
func Lookup(ctx context.Context, blobs store.BlobStore, current *bucketdag.Manifest, entrySecret secret.Secret, path string) ([]byte, bucketdag.Metadata, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, bucketdag.Metadata{}, err
	}
	if len(parts) == 0 {
		return nil, bucketdag.Metadata{}, fmt.Errorf("bucketops: lookup requires a file path: %w", bucketerr.ErrNotFound)
	}

	root, err := fetchNode(ctx, blobs, current.Entry, entrySecret)
	if err != nil {
		return nil, bucketdag.Metadata{}, err
	}
	dir, err := descend(ctx, blobs, root, parts[:len(parts)-1])
	if err != nil {
		return nil, bucketdag.Metadata{}, err
	}

	leaf := parts[len(parts)-1]
	link, ok := dir.Get(leaf)
	if !ok {
		return nil, bucketdag.Metadata{}, fmt.Errorf("bucketops: %q: %w", leaf, bucketerr.ErrNotFound)
	}
	if link.Kind != bucketdag.KindData {
		return nil, bucketdag.Metadata{}, fmt.Errorf("bucketops: %q is a directory: %w", leaf, bucketerr.ErrMalformed)
	}

	sealed, err := blobs.Get(ctx, link.Link)
	if err != nil {
		return nil, bucketdag.Metadata{}, fmt.Errorf("bucketops: fetch file %q: %w", leaf, err)
	}
	data, err := secret.Open(link.Secret, sealed)
	if err != nil {
		return nil, bucketdag.Metadata{}, fmt.Errorf("bucketops: open file %q: %w", leaf, err)
	}
	return data, link.Metadata, nil
}

// List returns the names of every entry directly under path inside current.
func List(ctx context.Context, blobs store.BlobStore, current *bucketdag.Manifest, entrySecret secret.Secret, path string) ([]string, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	root, err := fetchNode(ctx, blobs, current.Entry, entrySecret)
	if err != nil {
		return nil, err
	}
	dir, err := descend(ctx, blobs, root, parts)
	if err != nil {
		return nil, err
	}
	return dir.Names(), nil
}

// Grant wraps entrySecret for recipient at role and appends the resulting
// share to current's shares, returning the bumped manifest. entry and pins
// are carried over unchanged: granting access does not itself change any
// bucket content.
func Grant(current *bucketdag.Manifest, entrySecret secret.Secret, recipient identity.PublicKey, role bucketdag.Role) (*bucketdag.Manifest, error) {
	share, err := keyshare.Wrap(entrySecret, recipient)
	if err != nil {
		return nil, fmt.Errorf("bucketops: wrap entry secret for recipient: %w", err)
	}

	shares := make([]bucketdag.ShareEntry, len(current.Shares), len(current.Shares)+1)
	copy(shares, current.Shares)
	shares = append(shares, bucketdag.ShareEntry{
		Recipient: recipient,
		Principal: bucketdag.Principal{Role: role, Identity: recipient},
		Share:     share,
	})

	previous := current.Hash()
	m := &bucketdag.Manifest{
		ID:       current.ID,
		Name:     current.Name,
		Shares:   shares,
		Entry:    current.Entry,
		Pins:     current.Pins,
		Previous: &previous,
		Version:  current.Version,
	}
	if err := bucketdag.Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}
