// Package config handles configuration for the server,
// including defaults, environment variables, and command-line flags.
package config

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the dndserver binary.
//
// Fields:
//   - Addr: bind address for the TLS listener.
//   - StaticDir: directory with the client assets served at /.
//   - DatabasePath: path to the SQLite database file.
//   - DenylistPath: path to the BoltDB file with revoked session tokens.
//   - CertFile / KeyFile: TLS certificate and private key (PEM).
//   - RootCredPath: path to the root credentials descriptor (TOML).
//   - SessionTTL: lifetime of issued session tokens.
//   - SessionKeyHex: optional hex-encoded 32-byte session key; empty
//     means a fresh key is generated at startup and sessions do not
//     survive a restart.
//   - Verbose: enables debug logging.
type Config struct {
	Addr          string
	StaticDir     string
	DatabasePath  string
	DenylistPath  string
	CertFile      string
	KeyFile       string
	RootCredPath  string
	SessionKeyHex string
	SessionTTL    time.Duration
	Verbose       bool
}

// LoadDefaults populates Config with defaults matching the container layout.
func (c *Config) LoadDefaults() {
	c.Addr = ":8443"
	c.StaticDir = "/data/static"
	c.DatabasePath = "/data/data.db"
	c.DenylistPath = "/data/revoked.db"
	c.CertFile = "/data/cert.pem"
	c.KeyFile = "/data/key.pem"
	c.RootCredPath = "/data/root_creds.toml"
	c.SessionTTL = 360 * time.Minute
	c.Verbose = false
}

// Load builds a Config by applying defaults, then overlaying values
// from environment variables and finally from command-line flags.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := cfg.parseEnv(); err != nil {
		return nil, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SessionKey decodes SessionKeyHex.
// Returns nil when no key is configured
func (c *Config) SessionKey() ([]byte, error) {
	if c.SessionKeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.SessionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("session key is not valid hex: %w", err)
	}
	return key, nil
}

// parseEnv overlays values from DNDSERVER_* environment variables
func (c *Config) parseEnv() error {
	lookup := map[string]*string{
		"DNDSERVER_ADDR":        &c.Addr,
		"DNDSERVER_STATIC_DIR":  &c.StaticDir,
		"DNDSERVER_DB_PATH":     &c.DatabasePath,
		"DNDSERVER_DENYLIST":    &c.DenylistPath,
		"DNDSERVER_CERT_FILE":   &c.CertFile,
		"DNDSERVER_KEY_FILE":    &c.KeyFile,
		"DNDSERVER_ROOT_CREDS":  &c.RootCredPath,
		"DNDSERVER_SESSION_KEY": &c.SessionKeyHex,
	}
	for name, target := range lookup {
		if value, ok := os.LookupEnv(name); ok {
			*target = value
		}
	}

	if value, ok := os.LookupEnv("DNDSERVER_SESSION_TTL_MIN"); ok {
		minutes, err := strconv.Atoi(value)
		if err != nil || minutes <= 0 {
			return fmt.Errorf("DNDSERVER_SESSION_TTL_MIN must be a positive integer, got %q", value)
		}
		c.SessionTTL = time.Duration(minutes) * time.Minute
	}

	if value, ok := os.LookupEnv("DNDSERVER_VERBOSE"); ok {
		verbose, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("DNDSERVER_VERBOSE must be a boolean, got %q", value)
		}
		c.Verbose = verbose
	}

	return nil
}

// parseFlags overlays values from command-line flags
func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("dndserver", flag.ContinueOnError)

	fs.StringVar(&c.Addr, "addr", c.Addr, "address and port to listen on")
	fs.StringVar(&c.StaticDir, "static-dir", c.StaticDir, "path to the client static assets")
	fs.StringVar(&c.DatabasePath, "data-path", c.DatabasePath, "path to the persistent database file")
	fs.StringVar(&c.DenylistPath, "denylist-path", c.DenylistPath, "path to the revoked tokens database file")
	fs.StringVar(&c.CertFile, "cert", c.CertFile, "path to the TLS certificate (PEM)")
	fs.StringVar(&c.KeyFile, "key", c.KeyFile, "path to the TLS private key (PEM)")
	fs.StringVar(&c.RootCredPath, "root-creds", c.RootCredPath, "path to the root credentials descriptor (TOML)")
	fs.BoolVar(&c.Verbose, "verbose", c.Verbose, "enable more verbose logging")

	sessionTTLMin := fs.Int("session-ttl", int(c.SessionTTL.Minutes()), "session token lifetime in minutes")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if *sessionTTLMin <= 0 {
		return fmt.Errorf("session-ttl must be positive, got %d", *sessionTTLMin)
	}
	c.SessionTTL = time.Duration(*sessionTTLMin) * time.Minute

	return nil
}
