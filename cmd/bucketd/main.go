// Command bucketd is the long-running peer daemon: it opens the local
// blob/metadata stores, listens for inbound peer connections, and
// schedules periodic pulls for every known bucket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaxbuckets/buckets/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	if err := initLogging(cfg.DataDir, cfg.Debug); err != nil {
		return err
	}
	defer stopLogging()

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Infof("bucketd: listening on %s, identity %s", cfg.ListenAddr, d.id.Public())
	return d.run(ctx)
}
