package main

import (
	"context"
	"fmt"
	"net"

	"github.com/jaxbuckets/buckets/internal/peerdial"
	"github.com/jaxbuckets/buckets/peerproto"
)

// Listener accepts inbound peer connections and dispatches each one to a
// peerproto.Handler, one stream per connection.
type Listener struct {
	ln net.Listener
	h  *peerproto.Handler
}

// Listen opens a TCP listener on addr.
func Listen(addr string, h *peerproto.Handler) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bucketd: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln, h: h}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Serve accepts connections until ctx is cancelled or the listener is closed.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("bucketd: accept: %w", err)
			}
		}
		go l.handle(ctx, conn)
	}
}

func (l *Listener) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote, err := peerdial.ReadClaimedIdentity(conn)
	if err != nil {
		log.Debugf("bucketd: dropping connection from %s: %v", conn.RemoteAddr(), err)
		return
	}
	if err := l.h.HandleStream(ctx, remote, conn); err != nil {
		log.Debugf("bucketd: handle stream from %s: %v", remote, err)
	}
}
