// Package bucketerr collects the error taxonomy shared across the bucket
// store's components. Crypto, codec, and sync failures cross package
// boundaries freely (a tampered blob surfaces through the sync manager, not
// just the codec that decrypted it), so the sentinel errors live in one
// place and every package wraps them with fmt.Errorf("...: %w", ...) so
// errors.Is keeps working at any depth.
package bucketerr

import "errors"

var (
	// ErrMalformed means a blob failed to decode after it decrypted
	// successfully. Local bug or corrupted input; never retried.
	ErrMalformed = errors.New("malformed")

	// ErrTampered means AEAD authentication failed. The caller must not
	// use any bytes from the blob.
	ErrTampered = errors.New("tampered")

	// ErrInvalidShare means a key-wrap unwrap failed authentication.
	ErrInvalidShare = errors.New("invalid share")

	// ErrNotFound means a blob or bucket is absent locally and, if a peer
	// was queried, remotely too.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the remote peer is not present in the shares
	// of the manifest version being applied.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrFork means multi-hop verification discovered the remote's chain
	// does not linearly extend the local cursor.
	ErrFork = errors.New("fork")

	// ErrDepthExceeded means multi-hop verification exhausted its bounded
	// search without reaching the local cursor.
	ErrDepthExceeded = errors.New("depth exceeded")

	// ErrPeerUnreachable means an outbound peer RPC did not complete
	// before its deadline. Transient; no retry within the same flow.
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrTransportFailure means the blob transport failed to serve a
	// get/put. Transient; no retry within the same flow.
	ErrTransportFailure = errors.New("transport failure")

	// ErrConflict means advance_cursor's compare-and-swap lost a race;
	// the caller must re-read the cursor and re-validate.
	ErrConflict = errors.New("conflict")
)
