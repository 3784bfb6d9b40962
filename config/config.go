// Package config provides fieldcrypt configuration through environment variables.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/allisson/go-env"
	validation "github.com/jellydator/validation"
	"github.com/joho/godotenv"

	"github.com/ai8future/fieldcrypt"
)

// Config holds all application configuration.
type Config struct {
	// Keys is the ordered key list, primary first, from FIELDCRYPT_KEYS.
	Keys []string
	// SecretKey is the fallback application secret used when Keys is empty.
	SecretKey string
	// DigestKey is the dedicated digest key material from
	// FIELDCRYPT_DIGEST_KEY. It must not change once digests are stored.
	DigestKey string
	// UseHKDF strengthens every key with HKDF-SHA256 before use.
	UseHKDF bool

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string
	// LogFormat is the log output format ("text" or "json").
	LogFormat string

	// DBDriver is the database driver to use (e.g., "postgres", "mysql").
	DBDriver string
	// DBConnectionString is the connection string for the database.
	DBConnectionString string

	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Keys
		Keys:      splitKeys(env.GetString("FIELDCRYPT_KEYS", "")),
		SecretKey: env.GetString("FIELDCRYPT_SECRET_KEY", ""),
		DigestKey: env.GetString("FIELDCRYPT_DIGEST_KEY", ""),
		UseHKDF:   env.GetBool("FIELDCRYPT_USE_HKDF", true),

		// Logging
		LogLevel:  env.GetString("LOG_LEVEL", "info"),
		LogFormat: env.GetString("LOG_FORMAT", "text"),

		// Database configuration
		DBDriver:           env.GetString("DB_DRIVER", "postgres"),
		DBConnectionString: env.GetString("DB_CONNECTION_STRING", ""),

		// Metrics
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "fieldcrypt"),
	}
}

// Validate checks the configuration. At least one key source is required.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Keys,
			validation.Each(validation.Required.Error("key must not be blank")),
		),
		validation.Field(&c.SecretKey,
			validation.When(len(c.Keys) == 0,
				validation.Required.Error("FIELDCRYPT_KEYS or FIELDCRYPT_SECRET_KEY is required"),
			),
		),
		validation.Field(&c.LogLevel,
			validation.In("debug", "info", "warn", "error").Error("must be debug, info, warn or error"),
		),
		validation.Field(&c.LogFormat,
			validation.In("text", "json").Error("must be text or json"),
		),
		validation.Field(&c.DBDriver,
			validation.In("postgres", "pgx", "mysql").Error("must be postgres, pgx or mysql"),
		),
	)
}

// Settings converts the key configuration for fieldcrypt.NewKeySetFromSettings.
func (c *Config) Settings() fieldcrypt.Settings {
	s := fieldcrypt.Settings{DisableHKDF: !c.UseHKDF}
	for _, k := range c.Keys {
		s.Keys = append(s.Keys, []byte(k))
	}
	if c.SecretKey != "" {
		s.FallbackSecret = []byte(c.SecretKey)
	}
	if c.DigestKey != "" {
		s.DigestKey = []byte(c.DigestKey)
	}
	return s
}

// KeySet validates the configuration and builds the key set it describes.
func (c *Config) KeySet(opts ...fieldcrypt.KeySetOption) (*fieldcrypt.KeySet, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Join(fieldcrypt.ErrConfiguration, err)
	}
	return fieldcrypt.NewKeySetFromSettings(c.Settings(), opts...)
}

// splitKeys splits a comma separated key list, preserving order.
func splitKeys(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	keys := make([]string, len(parts))
	for i, p := range parts {
		keys[i] = strings.TrimSpace(p)
	}
	return keys
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// godotenv never overrides variables already set
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
