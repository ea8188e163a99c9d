// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath         string        `env:"SITEFLOW_DB_PATH" envDefault:"./data/siteflow.db"`
	SessionSecret  string        `env:"SITEFLOW_SESSION_SECRET,required"`
	ServerHost     string        `env:"SITEFLOW_SERVER_HOST" envDefault:"localhost"`
	ServerPort     int           `env:"SITEFLOW_SERVER_PORT" envDefault:"8080"`
	Env            string        `env:"SITEFLOW_ENV" envDefault:"development"`
	LogLevel       string        `env:"SITEFLOW_LOG_LEVEL" envDefault:"info"`
	DBTimeout      time.Duration `env:"SITEFLOW_DB_TIMEOUT" envDefault:"5s"`
	RequestTimeout time.Duration `env:"SITEFLOW_REQUEST_TIMEOUT" envDefault:"30s"`

	// TrustedProxies lists peer addresses whose X-Real-IP and
	// X-Forwarded-For headers are honoured.
	TrustedProxies []string `env:"SITEFLOW_TRUSTED_PROXIES" envSeparator:","`

	// TrustedOrigins lists host[:port] values allowed to make cross-origin
	// state-changing API requests.
	TrustedOrigins []string `env:"SITEFLOW_TRUSTED_ORIGINS" envSeparator:","`

	// Audit retention
	AuditRetentionDays int    `env:"SITEFLOW_AUDIT_RETENTION_DAYS" envDefault:"90"`
	AuditPurgeSchedule string `env:"SITEFLOW_AUDIT_PURGE_SCHEDULE" envDefault:"30 3 * * *"`

	// Seeding configuration
	DoSeed        bool   `env:"SITEFLOW_DO_SEED" envDefault:"false"`
	AdminEmail    string `env:"SITEFLOW_ADMIN_EMAIL"`
	AdminPassword string `env:"SITEFLOW_ADMIN_PASSWORD"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// CSRFTrustedOrigins returns the configured trusted origins. In development
// the server's own address is trusted as well.
func (c Config) CSRFTrustedOrigins() []string {
	origins := make([]string, 0, len(c.TrustedOrigins)+1)
	for _, o := range c.TrustedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if c.IsDevelopment() {
		origins = append(origins, c.ServerAddr())
	}
	return origins
}

// AuditRetention returns how long audit rows are kept. Zero disables purging.
func (c Config) AuditRetention() time.Duration {
	if c.AuditRetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.AuditRetentionDays) * 24 * time.Hour
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinSessionSecretLength is the minimum required length for the session secret.
// AES-256 requires 32 bytes minimum for secure encryption.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("SITEFLOW_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return fmt.Errorf("SITEFLOW_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(c.SessionSecret) {
		slog.Warn("SITEFLOW_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if c.DBTimeout <= 0 {
		return fmt.Errorf("SITEFLOW_DB_TIMEOUT must be positive, got %s", c.DBTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("SITEFLOW_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	for _, o := range c.TrustedOrigins {
		if strings.Contains(o, "://") {
			return fmt.Errorf("SITEFLOW_TRUSTED_ORIGINS entry %q must be host[:port], not a URL", o)
		}
	}
	if c.AuditRetentionDays > 0 {
		if _, err := cron.ParseStandard(c.AuditPurgeSchedule); err != nil {
			return fmt.Errorf("SITEFLOW_AUDIT_PURGE_SCHEDULE %q: %w", c.AuditPurgeSchedule, err)
		}
	}
	if c.DoSeed && !c.IsDevelopment() && c.AdminPassword == "" {
		return fmt.Errorf("SITEFLOW_ADMIN_PASSWORD is required when seeding outside development")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
