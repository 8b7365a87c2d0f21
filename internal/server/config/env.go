package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays AUTH_* variables. Unset variables keep current values.
func parseEnv(config *Config) error {
	return env.Parse(config)
}
