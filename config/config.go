// Package config handles rexpr.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "rexpr.toml"

// Config represents a rexpr.toml configuration.
type Config struct {
	Server  Server  `toml:"server"`
	Handles Handles `toml:"handles"`
	Log     Log     `toml:"log"`
	Journal Journal `toml:"journal"`
	Target  Target  `toml:"target"`

	// Dir is the directory containing the rexpr.toml file (set at load time).
	Dir string `toml:"-"`
}

// Server configures the RPC listener.
type Server struct {
	Addr   string   `toml:"addr"`
	Codecs []string `toml:"codecs"` // "json", "cbor"; empty accepts both
}

// Handles configures the lifetime of value handles.
type Handles struct {
	TTL           time.Duration `toml:"ttl"`
	SweepInterval time.Duration `toml:"sweep-interval"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Journal configures the evaluation journal. An empty path disables it.
type Journal struct {
	Path string `toml:"path"`
}

// Target selects the debuggee: a fixture file (the built-in demo when
// empty) and the thread sessions attach to by default.
type Target struct {
	Fixture string `toml:"fixture"`
	Thread  string `toml:"thread"`
}

// Default returns the configuration used when no rexpr.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "localhost:4860"
	}
	if c.Handles.TTL == 0 {
		c.Handles.TTL = 30 * time.Minute
	}
	if c.Handles.SweepInterval == 0 {
		c.Handles.SweepInterval = 5 * time.Minute
	}
	if c.Target.Thread == "" {
		c.Target.Thread = "main"
	}
}

// Load parses a rexpr.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	for _, name := range c.Server.Codecs {
		if name != "json" && name != "cbor" {
			return nil, fmt.Errorf("%s: unknown codec %q", path, name)
		}
	}
	if c.Handles.TTL < 0 || c.Handles.SweepInterval < 0 {
		return nil, fmt.Errorf("%s: handle durations must be positive", path)
	}

	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find a rexpr.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Resolve returns p relative to the configuration's directory. Absolute
// and empty paths are returned unchanged.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
