package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/flagx"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept "15m" strings or
// integer nanoseconds. Absent keys leave the current value alone.
type JsonConfig struct {
	HTTPAddr        string         `json:"http_addr"`
	DatabaseDSN     *string        `json:"database_dsn"`
	SecretKey       string         `json:"secret_key"`
	PublicURL       string         `json:"public_url"`
	LogLevel        string         `json:"log_level"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`

	AccessTokenTTL  timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL timex.Duration `json:"refresh_token_ttl"`

	LockoutThreshold int            `json:"lockout_threshold"`
	LockoutCooldown  timex.Duration `json:"lockout_cooldown"`

	TOTPTicketTTL      timex.Duration `json:"totp_ticket_ttl"`
	EmailCodeTicketTTL timex.Duration `json:"email_code_ticket_ttl"`
	TicketMaxAttempts  int            `json:"ticket_max_attempts"`
	TOTPIssuer         string         `json:"totp_issuer"`

	VerifyEmailTTL   timex.Duration `json:"verify_email_ttl"`
	ChangeEmailTTL   timex.Duration `json:"change_email_ttl"`
	ResetPasswordTTL timex.Duration `json:"reset_password_ttl"`

	BcryptCost int `json:"bcrypt_cost"`

	CookieSecure       *bool    `json:"cookie_secure"`
	AllowedOrigins     []string `json:"allowed_origins"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`

	Mailer   string `json:"mailer"`
	MailFrom string `json:"mail_from"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config in args, if any.
func parseJson(config *Config, args []string) error {
	jsonConfigFile := flagx.JsonConfigFlagsFrom(args)

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.PublicURL, c.PublicURL)
	setString(&config.LogLevel, c.LogLevel)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)

	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL)
	setDuration(&config.RefreshTokenTTL, c.RefreshTokenTTL)

	setInt(&config.LockoutThreshold, c.LockoutThreshold)
	setDuration(&config.LockoutCooldown, c.LockoutCooldown)

	setDuration(&config.TOTPTicketTTL, c.TOTPTicketTTL)
	setDuration(&config.EmailCodeTicketTTL, c.EmailCodeTicketTTL)
	setInt(&config.TicketMaxAttempts, c.TicketMaxAttempts)
	setString(&config.TOTPIssuer, c.TOTPIssuer)

	setDuration(&config.VerifyEmailTTL, c.VerifyEmailTTL)
	setDuration(&config.ChangeEmailTTL, c.ChangeEmailTTL)
	setDuration(&config.ResetPasswordTTL, c.ResetPasswordTTL)

	setInt(&config.BcryptCost, c.BcryptCost)

	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.AllowedOrigins != nil {
		config.AllowedOrigins = c.AllowedOrigins
	}
	setInt(&config.RateLimitPerMinute, c.RateLimitPerMinute)

	setString(&config.Mailer, c.Mailer)
	setString(&config.MailFrom, c.MailFrom)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
