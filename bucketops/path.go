package bucketops

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jaxbuckets/buckets/bucketerr"
)

// splitPath breaks a /-delimited path into its ordered components. A
// leading slash is stripped; an empty path (or "/") yields a nil slice
// naming the bucket root. Empty components are rejected; "." and ".."
// are ordinary names, not special.
func splitPath(path string) ([]string, error) {
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("bucketops: empty path component in %q: %w", path, bucketerr.ErrMalformed)
		}
		if !utf8.ValidString(p) {
			return nil, fmt.Errorf("bucketops: path component %q is not valid utf-8: %w", p, bucketerr.ErrMalformed)
		}
	}
	return parts, nil
}
