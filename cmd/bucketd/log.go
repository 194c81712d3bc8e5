package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/jaxbuckets/buckets/blobnet"
	"github.com/jaxbuckets/buckets/bucketlog"
	"github.com/jaxbuckets/buckets/peerproto"
	"github.com/jaxbuckets/buckets/syncmgr"
)

var log = bucketlog.Disabled

// logRotator is the log file in active use by the log writer; kept so it
// can be closed on shutdown, following the teacher's own
// jrick/logrotate-backed log.go.
var logRotator *rotator.Rotator

// initLogging opens a rotating log file under dataDir and installs a
// btclog backend on every package-scoped logger this daemon drives,
// mirroring the teacher's subsystem-logger-per-package wiring.
func initLogging(dataDir string, debug bool) error {
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return fmt.Errorf("bucketd: create log dir: %w", err)
	}

	r, err := rotator.New(filepath.Join(logDir, "bucketd.log"), 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("bucketd: open log rotator: %w", err)
	}
	logRotator = r

	backend := bucketlog.NewBackend(r)
	level := btclog.LevelInfo
	if debug {
		level = btclog.LevelDebug
	}

	mkLogger := func(subsystem string) btclog.Logger {
		l := backend.Logger(subsystem)
		l.SetLevel(level)
		return l
	}

	log = mkLogger("BCKD")
	peerproto.UseLogger(mkLogger("PEER"))
	syncmgr.UseLogger(mkLogger("SYNC"))
	blobnet.UseLogger(mkLogger("BNET"))
	return nil
}

func stopLogging() {
	if logRotator != nil {
		logRotator.Close()
	}
}
