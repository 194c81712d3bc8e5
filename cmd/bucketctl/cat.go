package main

import (
	"os"

	"github.com/jaxbuckets/buckets/bucketops"
)

type catCmd struct {
	Args struct {
		Bucket string `positional-arg-name:"bucket" description:"Bucket id, hex-encoded"`
		Path   string `positional-arg-name:"path" description:"File path inside the bucket"`
	} `positional-args:"yes" required:"yes"`
}

func (c *catCmd) Execute(_ []string) error {
	cl, err := newClient()
	if err != nil {
		return err
	}
	ctx := ctxFor()

	id, err := parseBucketID(c.Args.Bucket)
	if err != nil {
		return err
	}
	m, entrySecret, _, err := cl.loadBucket(ctx, id)
	if err != nil {
		return err
	}
	defer entrySecret.Zero()

	data, _, err := bucketops.Lookup(ctx, cl.blobs, m, entrySecret, c.Args.Path)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
