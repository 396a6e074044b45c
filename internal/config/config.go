// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"CHANGE_ME_SUPER_SECRET",
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// supportedJWTAlgorithms lists the symmetric signing algorithms the token
// manager accepts.
var supportedJWTAlgorithms = []string{"HS256", "HS384", "HS512"}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	AppName string `env:"OADMIN_APP_NAME" envDefault:"Admin Module"`

	PostgresHost     string `env:"OADMIN_POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"OADMIN_POSTGRES_PORT" envDefault:"5432"`
	PostgresDB       string `env:"OADMIN_POSTGRES_DB" envDefault:"admin_db"`
	PostgresUser     string `env:"OADMIN_POSTGRES_USER" envDefault:"admin"`
	PostgresPassword string `env:"OADMIN_POSTGRES_PASSWORD" envDefault:"admin"`

	// DatabaseURLOverride, when set, takes precedence over the individual
	// Postgres fields.
	DatabaseURLOverride string `env:"OADMIN_DATABASE_URL"`

	SecretKey                string `env:"OADMIN_SECRET_KEY,required"`
	JWTAlgorithm             string `env:"OADMIN_JWT_ALGORITHM" envDefault:"HS256"`
	AccessTokenExpireMinutes int    `env:"OADMIN_ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"60"`

	ServerHost string `env:"OADMIN_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"OADMIN_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"OADMIN_ENV" envDefault:"development"`
	LogLevel   string `env:"OADMIN_LOG_LEVEL" envDefault:"info"`

	// DB init retry configuration. MaxAttempts 0 means retry forever.
	DBInitIntervalSeconds int `env:"OADMIN_DB_INIT_INTERVAL_SECONDS" envDefault:"10"`
	DBInitMaxAttempts     int `env:"OADMIN_DB_INIT_MAX_ATTEMPTS" envDefault:"0"`

	// Seeding configuration
	DoSeed bool `env:"OADMIN_DO_SEED" envDefault:"true"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// DatabaseURL returns the Postgres connection string built from the
// configured parts, unless OADMIN_DATABASE_URL overrides it.
func (c Config) DatabaseURL() string {
	if c.DatabaseURLOverride != "" {
		return c.DatabaseURLOverride
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   "/" + c.PostgresDB,
	}
	return u.String()
}

// MinSecretKeyLength is the minimum required length for the signing secret.
const MinSecretKeyLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate signing secret length
	if len(cfg.SecretKey) < MinSecretKeyLength {
		return nil, fmt.Errorf("OADMIN_SECRET_KEY must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSecretKeyLength, len(cfg.SecretKey))
	}

	// Reject known weak/default secrets
	for _, weak := range knownWeakSecrets {
		if cfg.SecretKey == weak {
			return nil, fmt.Errorf("OADMIN_SECRET_KEY is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	// Warn about low-entropy secrets
	if !hasMinimumEntropy(cfg.SecretKey) {
		slog.Warn("OADMIN_SECRET_KEY has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	valid := false
	for _, alg := range supportedJWTAlgorithms {
		if cfg.JWTAlgorithm == alg {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("OADMIN_JWT_ALGORITHM must be one of %s, got %q",
			strings.Join(supportedJWTAlgorithms, ", "), cfg.JWTAlgorithm)
	}

	if cfg.AccessTokenExpireMinutes <= 0 {
		return nil, fmt.Errorf("OADMIN_ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d",
			cfg.AccessTokenExpireMinutes)
	}

	if cfg.DBInitIntervalSeconds <= 0 {
		return nil, fmt.Errorf("OADMIN_DB_INIT_INTERVAL_SECONDS must be positive, got %d",
			cfg.DBInitIntervalSeconds)
	}

	return cfg, nil
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
