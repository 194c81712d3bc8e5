package syncmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/bucketlog"
	"github.com/jaxbuckets/buckets/codec"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/peerproto"
	"github.com/jaxbuckets/buckets/store"
	"github.com/jaxbuckets/buckets/wire"
)

var log = bucketlog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger bucketlog.Logger) {
	log = logger
}

// Manager owns the per-bucket cursor and drives pull, push, and
// announce-in. Operations targeting the same bucket are serialized by a
// per-bucket mutex (spec.md §5, §9) so cursor advancement stays linear;
// operations on different buckets run fully in parallel.
type Manager struct {
	Blobs store.BlobStore
	Meta  store.MetadataStore
	Peers *peerproto.Client

	mu          sync.Mutex
	bucketLocks map[bucketdag.BucketID]*sync.Mutex
}

// NewManager returns a Manager driving sync over blobs and meta, issuing
// peer RPCs through peers.
func NewManager(blobs store.BlobStore, meta store.MetadataStore, peers *peerproto.Client) *Manager {
	return &Manager{
		Blobs:       blobs,
		Meta:        meta,
		Peers:       peers,
		bucketLocks: make(map[bucketdag.BucketID]*sync.Mutex),
	}
}

func (mgr *Manager) lockFor(id bucketdag.BucketID) *sync.Mutex {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	l, ok := mgr.bucketLocks[id]
	if !ok {
		l = &sync.Mutex{}
		mgr.bucketLocks[id] = l
	}
	return l
}

func (mgr *Manager) recordFailure(ctx context.Context, id bucketdag.BucketID) {
	if err := mgr.Meta.RecordSyncStatus(ctx, id, store.StatusFailed, time.Now()); err != nil {
		log.Warnf("syncmgr: record failed status for %s: %v", id, err)
	}
}

// apply performs spec.md §4.8's apply step for a Verified outcome: ensure
// pins are available, compare-and-swap the cursor, record Synced status.
func (mgr *Manager) apply(ctx context.Context, id bucketdag.BucketID, peer identity.PublicKey, result *VerifyResult, curLink *codec.Link) error {
	if _, err := mgr.Blobs.GetSequence(ctx, result.NewManifest.Pins, peer); err != nil {
		mgr.recordFailure(ctx, id)
		return fmt.Errorf("syncmgr: fetch pins for %s from %s: %w", id, peer, err)
	}
	newLink := result.NewLink
	if err := mgr.Meta.AdvanceCursor(ctx, id, curLink, &newLink); err != nil {
		mgr.recordFailure(ctx, id)
		return fmt.Errorf("syncmgr: advance cursor for %s: %w", id, err)
	}
	if err := mgr.Meta.RecordSyncStatus(ctx, id, store.StatusSynced, time.Now()); err != nil {
		return fmt.Errorf("syncmgr: record synced status for %s: %w", id, err)
	}
	return nil
}

// verifyAndApply runs multi-hop verification, the provenance check, and
// apply, in that order, against a single peer - shared by Pull and the
// non-bootstrap branch of HandleAnnounce.
func (mgr *Manager) verifyAndApply(ctx context.Context, id bucketdag.BucketID, peer identity.PublicKey, newLink codec.Link, curLink *codec.Link) error {
	result, err := verifyMultiHop(ctx, mgr.Blobs, peer, id, newLink, curLink)
	if err != nil {
		mgr.recordFailure(ctx, id)
		return err
	}
	switch result.Outcome {
	case OutcomeFork:
		mgr.recordFailure(ctx, id)
		return fmt.Errorf("syncmgr: verify %s against %s: %w", id, peer, bucketerr.ErrFork)
	case OutcomeDepthExceeded:
		mgr.recordFailure(ctx, id)
		return fmt.Errorf("syncmgr: verify %s against %s: %w", id, peer, bucketerr.ErrDepthExceeded)
	}
	if err := checkProvenance(result.NewManifest, peer); err != nil {
		mgr.recordFailure(ctx, id)
		return err
	}
	return mgr.apply(ctx, id, peer, result, curLink)
}

// Pull enumerates bucketID's known peers, pings each in parallel, and
// syncs from the first peer that reports Ahead (spec.md §4.8 Pull flow).
// No fallback to a second peer within the same pull.
func (mgr *Manager) Pull(ctx context.Context, id bucketdag.BucketID) error {
	l := mgr.lockFor(id)
	l.Lock()
	defer l.Unlock()

	row, err := mgr.Meta.GetBucket(ctx, id)
	if err != nil {
		return fmt.Errorf("syncmgr: pull %s: %w", id, err)
	}
	peers, err := mgr.Meta.ListPeers(ctx, id)
	if err != nil {
		return fmt.Errorf("syncmgr: list peers for %s: %w", id, err)
	}
	if len(peers) == 0 {
		return fmt.Errorf("syncmgr: no known peers for %s: %w", id, bucketerr.ErrNotFound)
	}

	type pingResult struct {
		peer   identity.PublicKey
		status wire.Status
		err    error
	}
	results := make(chan pingResult, len(peers))
	for _, p := range peers {
		go func(p identity.PublicKey) {
			status, err := mgr.Peers.Ping(ctx, p, id, row.CurrentLink)
			results <- pingResult{peer: p, status: status, err: err}
		}(p)
	}

	var ahead identity.PublicKey
	found := false
	for i := 0; i < len(peers); i++ {
		r := <-results
		if r.err != nil {
			log.Debugf("syncmgr: ping %s for %s failed: %v", r.peer, id, r.err)
			continue
		}
		if r.status == wire.StatusAhead {
			ahead = r.peer
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("syncmgr: no peer ahead for %s: %w", id, bucketerr.ErrNotFound)
	}

	newLink, err := mgr.Peers.FetchBucket(ctx, ahead, id)
	if err != nil {
		mgr.recordFailure(ctx, id)
		return fmt.Errorf("syncmgr: fetchbucket %s from %s: %w", id, ahead, err)
	}
	if newLink == nil {
		mgr.recordFailure(ctx, id)
		return fmt.Errorf("syncmgr: %s reported ahead but fetchbucket returned none for %s: %w", ahead, id, bucketerr.ErrNotFound)
	}

	return mgr.verifyAndApply(ctx, id, ahead, *newLink, row.CurrentLink)
}

// Push announces bucketID's current manifest to every known peer, in
// parallel, ignoring individual failures (spec.md §4.8 Push flow).
func (mgr *Manager) Push(ctx context.Context, id bucketdag.BucketID) error {
	row, err := mgr.Meta.GetBucket(ctx, id)
	if err != nil {
		return fmt.Errorf("syncmgr: push %s: %w", id, err)
	}
	if row.CurrentLink == nil {
		return fmt.Errorf("syncmgr: bucket %s has no manifest to push: %w", id, bucketerr.ErrNotFound)
	}
	data, err := mgr.Blobs.Get(ctx, *row.CurrentLink)
	if err != nil {
		return fmt.Errorf("syncmgr: read current manifest for %s: %w", id, err)
	}
	m, err := bucketdag.DecodeManifest(data)
	if err != nil {
		return fmt.Errorf("syncmgr: decode current manifest for %s: %w", id, err)
	}

	peers, err := mgr.Meta.ListPeers(ctx, id)
	if err != nil {
		return fmt.Errorf("syncmgr: list peers for %s: %w", id, err)
	}

	var wg sync.WaitGroup
	for _, p := range peers {
		wg.Add(1)
		go func(p identity.PublicKey) {
			defer wg.Done()
			if err := mgr.Peers.Announce(ctx, p, id, *row.CurrentLink, m.Previous); err != nil {
				log.Debugf("syncmgr: announce %s to %s failed: %v", id, p, err)
			}
		}(p)
	}
	wg.Wait()
	return nil
}

// bootstrap handles an Announce for a bucket not yet known locally: fetch
// the announced manifest, derive a local bucket row from it, record the
// announcer as a peer, best-effort fetch the pins, and set the cursor.
func (mgr *Manager) bootstrap(ctx context.Context, peer identity.PublicKey, id bucketdag.BucketID, newLink codec.Link) error {
	m, err := fetchManifest(ctx, mgr.Blobs, newLink, peer)
	if err != nil {
		return fmt.Errorf("syncmgr: bootstrap %s from %s: %w", id, peer, err)
	}
	if m.ID != id {
		return fmt.Errorf("syncmgr: bootstrap manifest id mismatch from %s: %w", peer, bucketerr.ErrMalformed)
	}
	if err := checkProvenance(m, peer); err != nil {
		return err
	}

	if err := mgr.Meta.UpsertBucket(ctx, store.BucketRow{ID: id, Name: m.Name, CreatedAt: time.Now()}); err != nil {
		return fmt.Errorf("syncmgr: bootstrap upsert %s: %w", id, err)
	}
	if err := mgr.Meta.AddPeer(ctx, id, peer); err != nil {
		return fmt.Errorf("syncmgr: bootstrap add peer %s for %s: %w", peer, id, err)
	}
	if _, err := mgr.Blobs.GetSequence(ctx, m.Pins, peer); err != nil {
		log.Debugf("syncmgr: bootstrap best-effort pins fetch for %s failed: %v", id, err)
	}
	if err := mgr.Meta.AdvanceCursor(ctx, id, nil, &newLink); err != nil {
		return fmt.Errorf("syncmgr: bootstrap advance cursor for %s: %w", id, err)
	}
	return mgr.Meta.RecordSyncStatus(ctx, id, store.StatusSynced, time.Now())
}

// HandleAnnounce processes an inbound Announce from peer (spec.md §4.8
// Announce-in handler). Bound to peerproto.AnnounceHandlerFunc.
func (mgr *Manager) HandleAnnounce(ctx context.Context, peer identity.PublicKey, id bucketdag.BucketID, newLink codec.Link, _ *codec.Link) error {
	l := mgr.lockFor(id)
	l.Lock()
	defer l.Unlock()

	row, err := mgr.Meta.GetBucket(ctx, id)
	if err != nil {
		if errors.Is(err, bucketerr.ErrNotFound) {
			return mgr.bootstrap(ctx, peer, id, newLink)
		}
		return fmt.Errorf("syncmgr: announce %s: %w", id, err)
	}
	return mgr.verifyAndApply(ctx, id, peer, newLink, row.CurrentLink)
}

// isAncestor reports whether candidate appears in cursor's Previous
// history, walking only local storage and bounded by MaxHistoryDepth.
func (mgr *Manager) isAncestor(ctx context.Context, candidate, cursor codec.Link) (bool, error) {
	current := cursor
	for depth := 0; depth < MaxHistoryDepth; depth++ {
		if current.Equal(candidate) {
			return true, nil
		}
		data, err := mgr.Blobs.Get(ctx, current)
		if err != nil {
			return false, nil
		}
		m, err := bucketdag.DecodeManifest(data)
		if err != nil {
			return false, fmt.Errorf("syncmgr: decode local manifest %s: %w", current.Hash, err)
		}
		if m.Previous == nil {
			return false, nil
		}
		current = *m.Previous
	}
	return false, nil
}

// HandlePing answers an inbound Ping, comparing the caller's current link
// against the local cursor. Bound to peerproto.PingHandlerFunc.
//
// Open question resolved (spec.md §9): when current is neither absent nor
// equal to the local cursor, this walks the local cursor's bounded
// history for current. Finding it there means the responder's chain
// linearly extends the caller's link, so this replies Ahead (the caller
// should FetchBucket), matching both the tested current=None case and the
// Pull flow's "pick the peer reporting Ahead" rule. Not finding it is
// reported as NotFound rather than guessing at fork vs. caller-ahead -
// StatusBehind is never emitted here, since detecting that the caller is
// ahead would require walking the caller's own chain, which Ping never
// receives.
func (mgr *Manager) HandlePing(ctx context.Context, _ identity.PublicKey, id bucketdag.BucketID, current *codec.Link) (wire.Status, error) {
	row, err := mgr.Meta.GetBucket(ctx, id)
	if err != nil {
		if errors.Is(err, bucketerr.ErrNotFound) {
			return wire.StatusNotFound, nil
		}
		return 0, fmt.Errorf("syncmgr: handle ping %s: %w", id, err)
	}
	if row.CurrentLink == nil {
		return wire.StatusNotFound, nil
	}
	if current == nil {
		return wire.StatusAhead, nil
	}
	if current.Equal(*row.CurrentLink) {
		return wire.StatusInSync, nil
	}
	ancestor, err := mgr.isAncestor(ctx, *current, *row.CurrentLink)
	if err != nil {
		return 0, err
	}
	if ancestor {
		return wire.StatusAhead, nil
	}
	return wire.StatusNotFound, nil
}

// HandleFetchBucket answers an inbound FetchBucket. Bound to
// peerproto.FetchBucketHandlerFunc.
func (mgr *Manager) HandleFetchBucket(ctx context.Context, _ identity.PublicKey, id bucketdag.BucketID) (*codec.Link, error) {
	row, err := mgr.Meta.GetBucket(ctx, id)
	if err != nil {
		if errors.Is(err, bucketerr.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("syncmgr: handle fetchbucket %s: %w", id, err)
	}
	return row.CurrentLink, nil
}

// Handler returns a peerproto.Handler whose callbacks are bound to mgr.
func (mgr *Manager) Handler() *peerproto.Handler {
	return &peerproto.Handler{
		OnPing:        mgr.HandlePing,
		OnFetchBucket: mgr.HandleFetchBucket,
		OnAnnounce:    mgr.HandleAnnounce,
	}
}
