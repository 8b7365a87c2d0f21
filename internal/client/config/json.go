package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/flagx"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "30s" or as integer nanoseconds. After parsing, values
// present in the file are copied into the runtime Config.
type JsonConfig struct {
	ServerURL       string         `json:"server_url"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	TokenDBPath     string         `json:"token_db_path"`
	RefreshFraction float64        `json:"refresh_fraction"`
	LogLevel        string         `json:"log_level"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The file path comes from -c or -config in args; without one nothing is
// loaded. Read and unmarshal errors are returned to the caller.
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config, args []string) error {
	jsonConfigFile := flagx.JsonConfigFlagsFrom(args)
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return err
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.TokenDBPath != "" {
		cfg.TokenDBPath = jc.TokenDBPath
	}
	if jc.RefreshFraction > 0 {
		cfg.RefreshFraction = jc.RefreshFraction
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	return nil
}
