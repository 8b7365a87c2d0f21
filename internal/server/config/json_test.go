package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_LoadsValues(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"http_addr":             "www.example:9000",
		"database_dsn":          "",
		"access_token_ttl":      "10m",
		"refresh_token_ttl":     float64(2 * time.Hour),
		"lockout_threshold":     7,
		"cookie_secure":         false,
		"allowed_origins":       []string{"https://app.example"},
		"s3_bucket":             "mail",
		"email_code_ticket_ttl": "90s",
	})

	var cfg Config
	cfg.LoadDefaults()
	require.NoError(t, parseJson(&cfg, []string{"-config", path}))

	assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
	assert.Equal(t, "", cfg.DatabaseDSN, "explicit empty DSN selects the memory store")
	assert.Equal(t, 10*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 2*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 7, cfg.LockoutThreshold)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, []string{"https://app.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "mail", cfg.S3Bucket)
	assert.Equal(t, 90*time.Second, cfg.EmailCodeTicketTTL)

	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Minute, cfg.LockoutCooldown)
	assert.Equal(t, "log", cfg.Mailer)
}

func Test_parseJson_NoFlagNoChange(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()
	before := cfg

	require.NoError(t, parseJson(&cfg, []string{"-a", ":1"}))
	assert.Equal(t, before, cfg)
}

func Test_parseJson_Errors(t *testing.T) {
	var cfg Config

	err := parseJson(&cfg, []string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	assert.Error(t, parseJson(&cfg, []string{"-c", bad}))

	badDur := writeTempJSON(t, "", "", map[string]any{"access_token_ttl": "soon"})
	assert.Error(t, parseJson(&cfg, []string{"-c", badDur}))
}
