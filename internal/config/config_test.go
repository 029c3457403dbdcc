package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/test"
auth:
  jwt_secret: "secret"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Notifications.SendTimeout)
	assert.Equal(t, 30, cfg.Notifications.CleanupReadAfterDays)
	assert.Equal(t, "*/15 * * * *", cfg.Scheduler.InterviewReminders)
	assert.Equal(t, "0 9 * * 1", cfg.Scheduler.WeeklyReports)
	assert.Equal(t, "smtp", cfg.Email.Provider)
	assert.Equal(t, "none", cfg.SMS.Provider)
	assert.Equal(t, 10*time.Second, cfg.Captcha.Timeout)
	assert.False(t, cfg.Verification.RefundFailedSend)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
database:
  url: "postgres://file/db"
auth:
  jwt_secret: "from-file"
notifications:
  send_timeout: 3s
`)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "9100")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Database.DSN)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Notifications.SendTimeout)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.Database.DSN = "postgres://x"
		c.Auth.JWTSecret = "s"
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing dsn", mutate: func(c *Config) { c.Database.DSN = "" }, wantErr: "database url is required"},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "jwt secret is required"},
		{name: "bad email provider", mutate: func(c *Config) { c.Email.Provider = "pigeon" }, wantErr: "unknown email provider"},
		{name: "bad sms provider", mutate: func(c *Config) { c.SMS.Provider = "fax" }, wantErr: "unknown sms provider"},
		{name: "negative send timeout", mutate: func(c *Config) { c.Notifications.SendTimeout = -time.Second }, wantErr: "send_timeout must be positive"},
		{name: "captcha without secret", mutate: func(c *Config) { c.Captcha.Enabled = true }, wantErr: "captcha secret is required"},
		{name: "rate limit without redis", mutate: func(c *Config) { c.RateLimit.Enabled = true; c.Redis.Addr = "" }, wantErr: "redis addr is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
