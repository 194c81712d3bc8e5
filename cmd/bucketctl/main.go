// Command bucketctl performs one-shot local operations against the same
// on-disk stores a running bucketd uses: create, insert, cat, ls, grant,
// and peers add. Each operation is its own go-flags subcommand, in the
// style of the teacher's command-per-RPC surface rather than a single
// generic argv parser.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

type options struct{}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)

	parser.AddCommand("create", "Create a new bucket", "Create a new empty bucket owned by this identity.", &createCmd{})
	parser.AddCommand("insert", "Insert a file into a bucket", "Insert a local file's contents at a path inside a bucket.", &insertCmd{})
	parser.AddCommand("cat", "Print a file from a bucket", "Decrypt and print the contents of a file inside a bucket.", &catCmd{})
	parser.AddCommand("ls", "List a directory inside a bucket", "List the entries directly under a path inside a bucket.", &lsCmd{})
	parser.AddCommand("grant", "Grant another identity access to a bucket", "Wrap the bucket's entry secret for another identity at a role.", &grantCmd{})

	peers := peersCmd{}
	peersGroup, err := parser.AddCommand("peers", "Manage configured peer addresses", "Manage configured peer addresses.", &peers)
	if err != nil {
		return fmt.Errorf("bucketctl: register peers command: %w", err)
	}
	peersGroup.AddCommand("add", "Add a peer address", "Add a pubkeyhex@host:port peer entry to the config file.", &peersAddCmd{})

	_, err = parser.Parse()
	return err
}

// ctxFor returns a background context; bucketctl is a one-shot process
// with no signal handling of its own, unlike bucketd's long-running loop.
func ctxFor() context.Context {
	return context.Background()
}
