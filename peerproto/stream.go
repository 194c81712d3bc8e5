// Package peerproto binds the wire message schemas to an actual stream
// transport: Client issues Ping/FetchBucket/Announce against a remote
// peer; Handler dispatches inbound streams to callbacks registered by
// package syncmgr. This mirrors the teacher's pairing of a thin wire
// schema package with a behavior package on top of it.
package peerproto

import (
	"context"
	"io"
	"time"

	"github.com/jaxbuckets/buckets/identity"
)

// Stream is one request/response (or fire-and-forget) exchange: one
// message out, at most one message in, then closed. Net.Conn satisfies
// this directly; the transport that authenticates the remote public key
// and produces Streams is supplied externally (spec's connection-level
// authentication is out of scope here).
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
	SetDeadline(t time.Time) error
}

// Dialer opens a new Stream to peer for one exchange.
type Dialer interface {
	Dial(ctx context.Context, peer identity.PublicKey) (Stream, error)
}

// deadlineFor derives an absolute deadline from ctx, if it carries one.
func deadlineFor(ctx context.Context) (time.Time, bool) {
	return ctx.Deadline()
}
