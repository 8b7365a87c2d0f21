package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 15*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 30*24*time.Hour, c.RefreshTokenTTL)
	assert.Equal(t, 5, c.LockoutThreshold)
	assert.Equal(t, 5*time.Minute, c.LockoutCooldown)
	assert.Equal(t, 5*time.Minute, c.TOTPTicketTTL)
	assert.Equal(t, 3*time.Minute, c.EmailCodeTicketTTL)
	assert.Equal(t, 3, c.TicketMaxAttempts)
	assert.Equal(t, 72*time.Hour, c.VerifyEmailTTL)
	assert.Equal(t, 24*time.Hour, c.ChangeEmailTTL)
	assert.Equal(t, time.Hour, c.ResetPasswordTTL)
	assert.True(t, c.CookieSecure)
	assert.Equal(t, "log", c.Mailer)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsWithoutInput(t *testing.T) {
	c, err := LoadConfig(nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, want.HTTPAddr, c.HTTPAddr)
	assert.Equal(t, want.DatabaseDSN, c.DatabaseDSN)
	assert.Equal(t, want.AccessTokenTTL, c.AccessTokenTTL)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"http_addr":  ":7000",
		"secret_key": "json-secret-json-secret-json-secret!",
		"log_level":  "debug",
	})
	t.Setenv("AUTH_HTTP_ADDR", ":7100")

	c, err := LoadConfig([]string{"-c", path, "-a", ":7200"})
	require.NoError(t, err)

	assert.Equal(t, ":7200", c.HTTPAddr, "flags win over env and json")
	assert.Equal(t, "json-secret-json-secret-json-secret!", c.SecretKey)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadConfig_RejectsShortSecret(t *testing.T) {
	_, err := LoadConfig([]string{"-s", "short"})
	assert.ErrorContains(t, err, "secret key")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"refresh shorter than access", func(c *Config) { c.RefreshTokenTTL = time.Minute }, "token TTLs"},
		{"zero threshold", func(c *Config) { c.LockoutThreshold = 0 }, "lockout"},
		{"no ticket attempts", func(c *Config) { c.TicketMaxAttempts = 0 }, "two-factor"},
		{"zero reset ttl", func(c *Config) { c.ResetPasswordTTL = 0 }, "one-time"},
		{"bad mailer", func(c *Config) { c.Mailer = "smtp" }, "unknown mailer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.errMsg)
		})
	}
}
