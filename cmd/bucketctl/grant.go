package main

import (
	"fmt"

	"github.com/jaxbuckets/buckets/bucketops"
)

type grantCmd struct {
	Args struct {
		Bucket    string `positional-arg-name:"bucket" description:"Bucket id, hex-encoded"`
		Recipient string `positional-arg-name:"recipient" description:"Recipient public key, hex-encoded"`
		Role      string `positional-arg-name:"role" description:"owner, editor, or viewer"`
	} `positional-args:"yes" required:"yes"`
}

func (c *grantCmd) Execute(_ []string) error {
	cl, err := newClient()
	if err != nil {
		return err
	}
	ctx := ctxFor()

	id, err := parseBucketID(c.Args.Bucket)
	if err != nil {
		return err
	}
	recipient, err := parsePublicKey(c.Args.Recipient)
	if err != nil {
		return err
	}
	role, err := parseRole(c.Args.Role)
	if err != nil {
		return err
	}

	m, entrySecret, oldLink, err := cl.loadBucket(ctx, id)
	if err != nil {
		return err
	}
	defer entrySecret.Zero()

	newManifest, err := bucketops.Grant(m, entrySecret, recipient, role)
	if err != nil {
		return err
	}
	if err := cl.commit(ctx, id, oldLink, newManifest); err != nil {
		return err
	}
	fmt.Printf("granted %s role %s on bucket %s\n", recipient, role, id)
	return nil
}
