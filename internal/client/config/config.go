package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/common"
)

// Config holds runtime settings for the cryptofolio terminal client.
//
// Fields:
//   - ServerURL: base URL of the auth HTTP API (scheme and host, no path).
//   - RequestTimeout: upper bound for every network call.
//   - TokenDBPath: SQLite file that keeps the token pair between runs.
//   - RefreshFraction: share of the access TTL after which the proactive
//     refresh fires (0.93 fires at ~14 minutes of a 15 minute token).
//   - LogLevel: client log level, logs go to stderr.
type Config struct {
	ServerURL       string
	RequestTimeout  time.Duration
	TokenDBPath     string
	RefreshFraction float64
	LogLevel        string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = common.DefaultRequestTimeout
	c.TokenDBPath = "cryptofolio_client.db"
	c.RefreshFraction = 0.93
	c.LogLevel = "warn"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags in args. Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid server url %q", c.ServerURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.RefreshFraction <= 0 || c.RefreshFraction >= 1 {
		errs = append(errs, errors.New("refresh fraction must be between 0 and 1"))
	}
	return errors.Join(errs...)
}
