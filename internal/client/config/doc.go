// Package config loads runtime configuration for the cryptofolio terminal client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the auth API
//	-t int      request timeout (seconds)
//	-f string   path to the local token database
//	-l string   log level
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "30s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "request_timeout": "30s",
//	  "token_db_path": "cryptofolio_client.db",
//	  "refresh_fraction": 0.93
//	}
//
// Primary API
//
//   - type Config                                  holds the client settings
//   - func LoadConfig(args []string) (*Config, error) applies defaults, JSON, then flags
//   - func (*Config) LoadDefaults()                sets sensible defaults
//
// Note: This package does not read environment variables; use the JSON file
// or flags to configure values.
package config
