// Package config loads bucketd/bucketctl's configuration from a YAML file
// and command-line flags, flags taking precedence over the file - the
// same two-layer shape as the teacher's own config loading (an on-disk
// file parsed first, then github.com/jessevdk/go-flags applied over it so
// the command line always wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// DefaultMaxHistoryDepth matches syncmgr.MaxHistoryDepth; production
// configs should never override it. The override exists only so tests can
// exercise DepthExceeded without manufacturing 100 manifests.
const DefaultMaxHistoryDepth = 100

const (
	defaultConfigFilename = "bucketd.yaml"
	defaultDataDir        = "bucketd"
	defaultListenAddr     = "127.0.0.1:8733"
	defaultPullInterval   = 30 * time.Second
)

// Config is bucketd/bucketctl's full set of runtime settings.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`

	DataDir      string        `short:"d" long:"datadir" description:"Directory to store buckets and metadata"`
	IdentityFile string        `long:"identity" description:"Path to the node's identity key file"`
	ListenAddr   string        `long:"listen" description:"Address to listen for peer connections on"`
	Peers        []string      `long:"addpeer" description:"Peer public key@address to connect to (may be given multiple times)"`
	PullInterval time.Duration `long:"pullinterval" description:"How often the scheduler pulls every known bucket"`

	// MaxHistoryDepth overrides syncmgr's bounded multi-hop verification
	// walk. Test-only; Default() sets it to DefaultMaxHistoryDepth, a zero
	// value in the YAML file leaves that in place, and validate rejects any
	// value <= 0.
	MaxHistoryDepth int `long:"maxhistorydepth" description:"Override the multi-hop verification depth bound (tests only)"`

	Debug bool `long:"debug" description:"Enable debug-level logging"`
}

// fileConfig mirrors the subset of Config that may come from the YAML
// file (ConfigFile itself is CLI-only: it names the file, it can't live
// inside it).
type fileConfig struct {
	DataDir         string        `yaml:"datadir"`
	IdentityFile    string        `yaml:"identity"`
	ListenAddr      string        `yaml:"listen"`
	Peers           []string      `yaml:"peers"`
	PullInterval    time.Duration `yaml:"pullinterval"`
	MaxHistoryDepth int           `yaml:"maxhistorydepth"`
	Debug           bool          `yaml:"debug"`
}

// Default returns a Config populated with bucketd's built-in defaults,
// rooted under the user's home directory the way the teacher's own
// default data directory is derived.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir:         filepath.Join(home, "."+defaultDataDir),
		ListenAddr:      defaultListenAddr,
		PullInterval:    defaultPullInterval,
		MaxHistoryDepth: DefaultMaxHistoryDepth,
	}
}

// Load parses args (typically os.Args[1:]) into a Config seeded with
// Default(), applying an on-disk YAML file (if named via -C/--configfile
// or found at the default data dir) before flags, so a flag always beats
// the file and the file always beats the built-in default.
func Load(args []string) (*Config, error) {
	cfg := Default()

	// First pass: flags only, to discover an explicit -C/--configfile
	// without yet enforcing required fields (the YAML file's content
	// hasn't been layered in).
	preParser := flags.NewParser(cfg, flags.HelpFlag)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}

	configPath := cfg.ConfigFile
	if configPath == "" {
		configPath = filepath.Join(cfg.DataDir, defaultConfigFilename)
	}
	if err := applyFile(cfg, configPath); err != nil {
		return nil, err
	}

	// Second pass: re-parse flags over the file-loaded values so the
	// command line still wins on every field it actually set.
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile loads path as YAML into cfg, leaving cfg untouched (not an
// error) if the file does not exist - the default data dir rarely has a
// config file on first run.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.IdentityFile != "" {
		cfg.IdentityFile = fc.IdentityFile
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if len(fc.Peers) > 0 {
		cfg.Peers = fc.Peers
	}
	if fc.PullInterval > 0 {
		cfg.PullInterval = fc.PullInterval
	}
	if fc.MaxHistoryDepth > 0 {
		cfg.MaxHistoryDepth = fc.MaxHistoryDepth
	}
	if fc.Debug {
		cfg.Debug = fc.Debug
	}
	return nil
}

// AppendPeer adds entry to the peers list in the YAML file at path,
// creating the file (with bucketd's built-in defaults for every other
// field) if it does not yet exist. Used by bucketctl's "peers add"
// subcommand to persist a peer address without requiring bucketd to be
// restarted with a new flag.
func AppendPeer(path string, entry string) error {
	var fc fileConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Start from an empty fileConfig; the zero value of every field
		// means "use the built-in default" when the file is next loaded.
	default:
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	for _, p := range fc.Peers {
		if p == entry {
			return nil
		}
	}
	fc.Peers = append(fc.Peers, entry)

	out, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("config: marshal %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: datadir must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	if c.PullInterval <= 0 {
		return fmt.Errorf("config: pullinterval must be positive")
	}
	if c.MaxHistoryDepth <= 0 {
		return fmt.Errorf("config: maxhistorydepth must be positive")
	}
	if c.IdentityFile == "" {
		c.IdentityFile = filepath.Join(c.DataDir, "identity.key")
	}
	return nil
}
