package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/jaxbuckets/buckets/bucketops"
)

type insertCmd struct {
	Args struct {
		Bucket string `positional-arg-name:"bucket" description:"Bucket id, hex-encoded"`
		Path   string `positional-arg-name:"path" description:"Destination path inside the bucket"`
		File   string `positional-arg-name:"file" description:"Local file to read"`
	} `positional-args:"yes" required:"yes"`
}

func (c *insertCmd) Execute(_ []string) error {
	cl, err := newClient()
	if err != nil {
		return err
	}
	ctx := ctxFor()

	id, err := parseBucketID(c.Args.Bucket)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Args.File)
	if err != nil {
		return fmt.Errorf("bucketctl: read %s: %w", c.Args.File, err)
	}

	m, entrySecret, oldLink, err := cl.loadBucket(ctx, id)
	if err != nil {
		return err
	}
	defer entrySecret.Zero()

	var mimeType *string
	if t := mime.TypeByExtension(filepath.Ext(c.Args.File)); t != "" {
		mimeType = &t
	}

	newManifest, err := bucketops.Insert(ctx, cl.blobs, m, entrySecret, c.Args.Path, data, mimeType)
	if err != nil {
		return err
	}

	if err := cl.commit(ctx, id, oldLink, newManifest); err != nil {
		return err
	}
	fmt.Printf("inserted %s into %s at %s\n", c.Args.File, id, c.Args.Path)
	return nil
}
