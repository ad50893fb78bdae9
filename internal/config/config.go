// Package config loads runtime settings from the environment and an
// optional config file, with sane defaults for everything that has one.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config holds every runtime setting the sync pipeline needs.
type Config struct {
	// Token cache.
	TokenCacheFile       string
	TokenCachePassphrase string
	TokenExpiryHours     int

	// Interactive login.
	LoginTimeout      time.Duration
	LoginPollInterval time.Duration
	BrowserCommand    string

	// Google integrations.
	ServiceAccountFile   string
	SpreadsheetID        string
	ChangedSpreadsheetID string
	CalendarID           string

	// Email notifications.
	EmailSender     string
	EmailPassword   string
	EmailRecipients []string
	SMTPHost        string
	SMTPPort        int

	// Operational.
	DataDir  string
	LogLevel string
}

// Load reads settings from environment variables and, when present, a
// hearing-sync.yaml file in the working directory or data dir. Environment
// variables win over file values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("token_cache_file", "~/.hearing-sync/session-tokens.json")
	v.SetDefault("token_expiry_hours", 24)
	v.SetDefault("login_timeout_seconds", 300)
	v.SetDefault("login_poll_seconds", 2)
	v.SetDefault("browser_command", "")
	v.SetDefault("smtp_host", "smtp.gmail.com")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("data_dir", "~/.hearing-sync")
	v.SetDefault("log_level", "info")

	v.SetConfigName("hearing-sync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.hearing-sync")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		TokenCacheFile:       v.GetString("token_cache_file"),
		TokenCachePassphrase: v.GetString("token_cache_passphrase"),
		TokenExpiryHours:     v.GetInt("token_expiry_hours"),

		LoginTimeout:      time.Duration(v.GetInt("login_timeout_seconds")) * time.Second,
		LoginPollInterval: time.Duration(v.GetInt("login_poll_seconds")) * time.Second,
		BrowserCommand:    v.GetString("browser_command"),

		ServiceAccountFile:   v.GetString("google_service_account_file"),
		SpreadsheetID:        v.GetString("spreadsheet_id"),
		ChangedSpreadsheetID: v.GetString("changed_spreadsheet_id"),
		CalendarID:           v.GetString("calendar_id"),

		EmailSender:     v.GetString("email_sender"),
		EmailPassword:   v.GetString("email_password"),
		EmailRecipients: splitList(v.GetString("email_recipients")),
		SMTPHost:        v.GetString("smtp_host"),
		SMTPPort:        v.GetInt("smtp_port"),

		DataDir:  v.GetString("data_dir"),
		LogLevel: v.GetString("log_level"),
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once so the
// operator can fix the whole environment in one pass. Integrations that are
// simply unconfigured (no spreadsheet, no calendar, no sender) are allowed;
// half-configured ones are not.
func (c *Config) Validate() error {
	var err error

	if c.TokenCacheFile == "" {
		err = multierr.Append(err, fmt.Errorf("token_cache_file must not be empty"))
	}
	if c.TokenExpiryHours <= 0 {
		err = multierr.Append(err, fmt.Errorf("token_expiry_hours must be positive, got %d", c.TokenExpiryHours))
	}
	if c.LoginTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("login_timeout_seconds must be positive"))
	}
	if c.LoginPollInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("login_poll_seconds must be positive"))
	}

	if (c.SpreadsheetID != "" || c.CalendarID != "") && c.ServiceAccountFile == "" {
		err = multierr.Append(err, fmt.Errorf("google_service_account_file is required when spreadsheet_id or calendar_id is set"))
	}

	if c.EmailSender != "" {
		if c.EmailPassword == "" {
			err = multierr.Append(err, fmt.Errorf("email_password is required when email_sender is set"))
		}
		if len(c.EmailRecipients) == 0 {
			err = multierr.Append(err, fmt.Errorf("email_recipients is required when email_sender is set"))
		}
	}

	return err
}

// TokenTTL returns the configured token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenExpiryHours) * time.Hour
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
