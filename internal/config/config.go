package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Swagger         bool          `yaml:"swagger"`
	// TrustedProxies feeds gin's client IP resolution; empty trusts none.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type DatabaseConfig struct {
	DSN string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type EmailConfig struct {
	// Provider is one of smtp, ses, resend, none.
	Provider     string     `yaml:"provider"`
	FromEmail    string     `yaml:"from_email"`
	FromName     string     `yaml:"from_name"`
	SMTP         SMTPConfig `yaml:"smtp"`
	SESRegion    string     `yaml:"ses_region"`
	ResendAPIKey string     `yaml:"resend_api_key"`
}

type MobizonConfig struct {
	APIKey   string `yaml:"api_key"`
	SenderID string `yaml:"sender_id"`
	DryRun   bool   `yaml:"dry_run"`
	BaseURL  string `yaml:"base_url"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

type SMSConfig struct {
	// Provider is one of mobizon, twilio, sns, none.
	Provider  string        `yaml:"provider"`
	Mobizon   MobizonConfig `yaml:"mobizon"`
	Twilio    TwilioConfig  `yaml:"twilio"`
	SNSRegion string        `yaml:"sns_region"`
}

type VerificationConfig struct {
	BcryptCost       int  `yaml:"bcrypt_cost"`
	RefundFailedSend bool `yaml:"refund_failed_send"`
}

type NotificationsConfig struct {
	SendTimeout          time.Duration `yaml:"send_timeout"`
	CleanupReadAfterDays int           `yaml:"cleanup_read_after_days"`
	AppURL               string        `yaml:"app_url"`
}

type SchedulerConfig struct {
	Enabled            bool   `yaml:"enabled"`
	InterviewReminders string `yaml:"interview_reminders"`
	FollowUps          string `yaml:"follow_ups"`
	WeeklyReports      string `yaml:"weekly_reports"`
	Cleanup            string `yaml:"cleanup"`
}

type CaptchaConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Secret    string        `yaml:"secret"`
	VerifyURL string        `yaml:"verify_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type ReportsConfig struct {
	FontPath string `yaml:"font_path"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
	Email         EmailConfig         `yaml:"email"`
	SMS           SMSConfig           `yaml:"sms"`
	Verification  VerificationConfig  `yaml:"verification"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Captcha       CaptchaConfig       `yaml:"captcha"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Reports       ReportsConfig       `yaml:"reports"`
}

// LoadConfig reads .env (if present), the YAML file at path (CONFIG_PATH wins when set),
// applies environment overrides and defaults, then validates.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	if p := os.Getenv("CONFIG_PATH"); p != "" {
		path = p
	}
	if path == "" {
		path = DefaultPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Email.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.Email.ResendAPIKey, "RESEND_API_KEY")
	setString(&c.SMS.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&c.SMS.Mobizon.APIKey, "MOBIZON_API_KEY")
	setString(&c.Captcha.Secret, "CAPTCHA_SECRET")
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Email.Provider == "" {
		c.Email.Provider = "smtp"
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "Candi Tracker"
	}
	if c.SMS.Provider == "" {
		c.SMS.Provider = "none"
	}
	if c.SMS.Mobizon.BaseURL == "" {
		c.SMS.Mobizon.BaseURL = "https://api.mobizon.kz"
	}
	if c.Verification.BcryptCost == 0 {
		c.Verification.BcryptCost = 10
	}
	if c.Notifications.SendTimeout == 0 {
		c.Notifications.SendTimeout = 10 * time.Second
	}
	if c.Notifications.CleanupReadAfterDays == 0 {
		c.Notifications.CleanupReadAfterDays = 30
	}
	if c.Scheduler.InterviewReminders == "" {
		c.Scheduler.InterviewReminders = "*/15 * * * *"
	}
	if c.Scheduler.FollowUps == "" {
		c.Scheduler.FollowUps = "0 9 * * *"
	}
	if c.Scheduler.WeeklyReports == "" {
		c.Scheduler.WeeklyReports = "0 9 * * 1"
	}
	if c.Scheduler.Cleanup == "" {
		c.Scheduler.Cleanup = "0 2 * * *"
	}
	if c.Captcha.VerifyURL == "" {
		c.Captcha.VerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if c.Captcha.Timeout == 0 {
		c.Captcha.Timeout = 10 * time.Second
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 20
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
}

func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Email.Provider {
	case "smtp", "ses", "resend", "none":
	default:
		return fmt.Errorf("unknown email provider %q", c.Email.Provider)
	}
	switch c.SMS.Provider {
	case "mobizon", "twilio", "sns", "none":
	default:
		return fmt.Errorf("unknown sms provider %q", c.SMS.Provider)
	}
	if c.Notifications.SendTimeout < 0 {
		return errors.New("notifications send_timeout must be positive")
	}
	if c.Captcha.Timeout < 0 {
		return errors.New("captcha timeout must be positive")
	}
	if c.Captcha.Enabled && c.Captcha.Secret == "" {
		return errors.New("captcha secret is required when captcha is enabled")
	}
	if c.RateLimit.Enabled && c.Redis.Addr == "" {
		return errors.New("redis addr is required when rate limiting is enabled")
	}
	if c.Notifications.CleanupReadAfterDays < 0 {
		return errors.New("cleanup_read_after_days must not be negative")
	}
	return nil
}
