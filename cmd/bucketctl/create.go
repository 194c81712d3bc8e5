package main

import (
	"fmt"
	"time"

	"github.com/jaxbuckets/buckets/bucketops"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/store"
)

type createCmd struct {
	Args struct {
		Name string `positional-arg-name:"name" description:"Human-readable name for the new bucket"`
	} `positional-args:"yes" required:"yes"`
}

func (c *createCmd) Execute(_ []string) error {
	cl, err := newClient()
	if err != nil {
		return err
	}
	ctx := ctxFor()

	m, entrySecret, err := bucketops.Create(ctx, cl.blobs, c.Args.Name, cl.id)
	if err != nil {
		return err
	}
	defer entrySecret.Zero()

	manifestLink, err := cl.blobs.Put(ctx, codec.CodecManifest, codec.FormatSingle, m.Encode())
	if err != nil {
		return fmt.Errorf("bucketctl: store manifest: %w", err)
	}

	now := time.Now()
	if err := cl.meta.UpsertBucket(ctx, store.BucketRow{
		ID:          m.ID,
		Name:        m.Name,
		CurrentLink: &manifestLink,
		CreatedAt:   now,
		SyncedAt:    &now,
		Status:      store.StatusSynced,
	}); err != nil {
		return fmt.Errorf("bucketctl: register bucket: %w", err)
	}

	fmt.Printf("created bucket %s (%s)\n", m.ID, m.Name)
	return nil
}
