package main

import (
	"encoding/hex"
	"fmt"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/identity"
)

func parseBucketID(s string) (bucketdag.BucketID, error) {
	var id bucketdag.BucketID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("bucketctl: %q is not a valid bucket id", s)
	}
	copy(id[:], b)
	return id, nil
}

func parsePublicKey(s string) (identity.PublicKey, error) {
	var pk identity.PublicKey
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(pk) {
		return pk, fmt.Errorf("bucketctl: %q is not a valid public key", s)
	}
	copy(pk[:], b)
	return pk, nil
}

func parseRole(s string) (bucketdag.Role, error) {
	switch s {
	case "owner":
		return bucketdag.RoleOwner, nil
	case "editor":
		return bucketdag.RoleEditor, nil
	case "viewer":
		return bucketdag.RoleViewer, nil
	default:
		return 0, fmt.Errorf("bucketctl: unknown role %q, want owner, editor, or viewer", s)
	}
}
