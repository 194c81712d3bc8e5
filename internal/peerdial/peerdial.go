// Package peerdial is the connection-setup code shared by bucketd and
// bucketctl: parsing "pubkeyhex@host:port" peer table entries and dialing
// a peerproto stream to one of them. Both binaries need identical
// wiring, so it lives under internal/ rather than being duplicated or
// hung off one cmd package and imported by the other.
package peerdial

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/btcsuite/go-socks/socks"

	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/peerproto"
)

// ParsePeers parses "pubkeyhex@host:port" entries into an address table
// keyed by public key.
func ParsePeers(entries []string) (map[identity.PublicKey]string, error) {
	out := make(map[identity.PublicKey]string, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, "@", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("peerdial: malformed peer entry %q, want pubkeyhex@host:port", e)
		}
		var pk identity.PublicKey
		n, err := fmt.Sscanf(parts[0], "%x", &pk)
		if err != nil || n != 1 {
			return nil, fmt.Errorf("peerdial: malformed peer public key %q: %w", parts[0], err)
		}
		out[pk] = parts[1]
	}
	return out, nil
}

// ReadClaimedIdentity reads the 32-byte public key the dialing side sends
// as a connection preamble. Connection-level authentication of that claim
// is out of scope (spec.md §6's transport is "authenticates the remote's
// public key... out of scope here"); the preamble exists only so the
// provenance checks further up the stack (syncmgr's shares membership
// test) have a remote identity to check against.
func ReadClaimedIdentity(conn net.Conn) (identity.PublicKey, error) {
	var buf [32]byte
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		return identity.PublicKey{}, fmt.Errorf("peerdial: read peer identity preamble: %w", err)
	}
	return identity.PublicKey(buf), nil
}

// WriteClaimedIdentity sends self's public key as the connection preamble
// ReadClaimedIdentity expects.
func WriteClaimedIdentity(conn net.Conn, self identity.PublicKey) error {
	_, err := conn.Write(self[:])
	return err
}

// TCPDialer is a peerproto.Dialer connecting to statically configured peer
// addresses, optionally through a SOCKS proxy - the same optional-proxy
// wiring the teacher offers its own connection manager for
// privacy-sensitive peer connections.
type TCPDialer struct {
	self  identity.PublicKey
	addrs map[identity.PublicKey]string
	proxy *socks.Proxy // nil means dial directly
}

// NewTCPDialer builds a TCPDialer. proxyAddr, if non-empty, routes every
// dial through a SOCKS proxy at that address.
func NewTCPDialer(self identity.PublicKey, addrs map[identity.PublicKey]string, proxyAddr string) *TCPDialer {
	d := &TCPDialer{self: self, addrs: addrs}
	if proxyAddr != "" {
		d.proxy = &socks.Proxy{Addr: proxyAddr}
	}
	return d
}

// Dial opens a connection to peer's configured address and sends the
// local identity preamble ReadClaimedIdentity expects on the other end.
func (d *TCPDialer) Dial(ctx context.Context, peer identity.PublicKey) (peerproto.Stream, error) {
	addr, ok := d.addrs[peer]
	if !ok {
		return nil, fmt.Errorf("peerdial: no known address for peer %s", peer)
	}

	var conn net.Conn
	var err error
	if d.proxy != nil {
		conn, err = d.proxy.Dial("tcp", addr)
	} else {
		var nd net.Dialer
		conn, err = nd.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("peerdial: dial %s at %s: %w", peer, addr, err)
	}

	if dl, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(dl); err != nil {
			conn.Close()
			return nil, fmt.Errorf("peerdial: set dial deadline for %s: %w", peer, err)
		}
	}
	if err := WriteClaimedIdentity(conn, d.self); err != nil {
		conn.Close()
		return nil, fmt.Errorf("peerdial: send identity preamble to %s: %w", peer, err)
	}
	return conn, nil
}
