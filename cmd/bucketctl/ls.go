package main

import (
	"fmt"

	"github.com/jaxbuckets/buckets/bucketops"
)

type lsCmd struct {
	Args struct {
		Bucket string `positional-arg-name:"bucket" description:"Bucket id, hex-encoded"`
		Path   string `positional-arg-name:"path" description:"Directory path inside the bucket" default:""`
	} `positional-args:"yes"`
}

func (c *lsCmd) Execute(_ []string) error {
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

	names, err := bucketops.List(ctx, cl.blobs, m, entrySecret, c.Args.Path)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
