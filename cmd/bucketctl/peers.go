package main

import (
	"fmt"
	"path/filepath"

	"github.com/jaxbuckets/buckets/config"
	"github.com/jaxbuckets/buckets/internal/peerdial"
)

// peersCmd is the parent of the "peers" command group; it carries no
// flags of its own.
type peersCmd struct{}

type peersAddCmd struct {
	Args struct {
		Entry string `positional-arg-name:"pubkey@addr" description:"Peer public key (hex) and address, e.g. ab12..@1.2.3.4:8733"`
	} `positional-args:"yes" required:"yes"`
}

func (c *peersAddCmd) Execute(_ []string) error {
	if _, err := peerdial.ParsePeers([]string{c.Args.Entry}); err != nil {
		return err
	}

	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	path := cfg.ConfigFile
	if path == "" {
		path = filepath.Join(cfg.DataDir, "bucketd.yaml")
	}
	if err := config.AppendPeer(path, c.Args.Entry); err != nil {
		return err
	}
	fmt.Printf("added peer %s to %s\n", c.Args.Entry, path)
	return nil
}
