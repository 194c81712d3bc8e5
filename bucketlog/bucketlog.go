// Package bucketlog re-exports the btclog.Logger interface so every
// component package can declare a package-level logger and a UseLogger
// hook without importing btclog directly. cmd/bucketd is the only place
// that wires a concrete backend; every other package stays agnostic of
// how (or whether) its log lines are collected.
package bucketlog

import "github.com/btcsuite/btclog"

// Logger is the interface every package-level "log" variable satisfies.
type Logger = btclog.Logger

// Disabled is a Logger that drops everything. It is the default until a
// caller installs a real backend with UseLogger.
var Disabled = btclog.Disabled

// Backend builds per-subsystem Loggers that share one output and level.
type Backend = btclog.Backend

// NewBackend wraps an io.Writer as a Backend, mirroring btclog's own
// constructor so callers never need to import btclog for this either.
func NewBackend(w interface {
	Write(p []byte) (n int, err error)
}) *Backend {
	return btclog.NewBackend(w)
}
