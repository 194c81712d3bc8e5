package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/jaxbuckets/buckets/blobnet"
	"github.com/jaxbuckets/buckets/config"
	"github.com/jaxbuckets/buckets/identity"
	"github.com/jaxbuckets/buckets/internal/peerdial"
	"github.com/jaxbuckets/buckets/peerproto"
	"github.com/jaxbuckets/buckets/store"
	"github.com/jaxbuckets/buckets/syncmgr"
)

// daemon wires every package together: local stores, the sync manager,
// the peer listener/dialer, the scheduler, and the status endpoint.
type daemon struct {
	cfg *config.Config
	id  *identity.Identity

	blobs store.BlobStore
	meta  store.MetadataStore

	mgr       *syncmgr.Manager
	scheduler *syncmgr.Scheduler
	listener  *Listener
	status    *http.Server
}

func newDaemon(cfg *config.Config) (*daemon, error) {
	id, err := loadOrCreateIdentity(cfg.IdentityFile)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("bucketd: create data dir: %w", err)
	}

	if cfg.MaxHistoryDepth != config.DefaultMaxHistoryDepth {
		log.Warnf("bucketd: overriding multi-hop verification depth to %d (test-only setting)", cfg.MaxHistoryDepth)
		syncmgr.MaxHistoryDepth = cfg.MaxHistoryDepth
	}

	peerAddrs, err := peerdial.ParsePeers(cfg.Peers)
	if err != nil {
		return nil, err
	}
	dialer := peerdial.NewTCPDialer(id.Public(), peerAddrs, "")
	peerClient := peerproto.NewClient(dialer)

	blobs, err := store.OpenLevelBlobStore(cfg.DataDir+"/blobs", blobnet.NewClient(peerClient))
	if err != nil {
		return nil, fmt.Errorf("bucketd: open blob store: %w", err)
	}
	meta, err := store.OpenLevelMetaStore(cfg.DataDir + "/meta")
	if err != nil {
		return nil, fmt.Errorf("bucketd: open meta store: %w", err)
	}

	mgr := syncmgr.NewManager(blobs, meta, peerClient)
	scheduler := syncmgr.NewScheduler(mgr, cfg.PullInterval)

	handler := mgr.Handler()
	blobnet.NewServer(blobs).Bind(handler)

	listener, err := Listen(cfg.ListenAddr, handler)
	if err != nil {
		return nil, err
	}

	return &daemon{
		cfg:       cfg,
		id:        id,
		blobs:     blobs,
		meta:      meta,
		mgr:       mgr,
		scheduler: scheduler,
		listener:  listener,
	}, nil
}

func loadOrCreateIdentity(path string) (*identity.Identity, error) {
	if _, err := os.Stat(path); err == nil {
		return identity.LoadEnvelope(path)
	}
	id, err := identity.Generate()
	if err != nil {
		return nil, fmt.Errorf("bucketd: generate identity: %w", err)
	}
	if err := id.SaveEnvelope(path); err != nil {
		return nil, fmt.Errorf("bucketd: save identity: %w", err)
	}
	return id, nil
}

// run starts the listener, scheduler, and status endpoint, blocking until
// ctx is cancelled.
func (d *daemon) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.listener.Serve(ctx)
	}()

	go d.scheduler.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/status", newStatusServer(d.meta))
	d.status = &http.Server{Addr: "127.0.0.1:8734", Handler: mux}
	go func() {
		if err := d.status.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warnf("bucketd: status server: %v", err)
		}
	}()

	<-ctx.Done()
	d.scheduler.Stop()
	d.listener.Close()
	d.status.Close()
	return <-errCh
}
