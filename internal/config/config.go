package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	Verify    VerifyConfig    `mapstructure:"verify"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig for the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // sqlite, memory
	Path    string `mapstructure:"path"`    // sqlite database file
}

// CryptoConfig carries the tunable security parameters. Changing
// KDFIterations invalidates stored password records; changing KeyBits
// only affects newly generated key pairs.
type CryptoConfig struct {
	KeyBits       int `mapstructure:"key_bits"`
	KDFIterations int `mapstructure:"kdf_iterations"`
}

// VerifyConfig for email verification codes.
type VerifyConfig struct {
	CodeLength int           `mapstructure:"code_length"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig throttles login attempts per remote address.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
	File   string `mapstructure:"file"`   // empty = stdout
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "securechat.db",
		},
		Crypto: CryptoConfig{
			KeyBits:       2048,
			KDFIterations: 100000,
		},
		Verify: VerifyConfig{
			CodeLength: 6,
			TTL:        15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     1,
			Burst:   5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.Store.Backend {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}

	if c.Crypto.KeyBits < 2048 {
		return fmt.Errorf("crypto.key_bits must be at least 2048")
	}
	if c.Crypto.KDFIterations < 10000 {
		return fmt.Errorf("crypto.kdf_iterations must be at least 10000")
	}

	if c.Verify.CodeLength < 4 {
		return fmt.Errorf("verify.code_length must be at least 4")
	}
	if c.Verify.TTL <= 0 {
		return fmt.Errorf("verify.ttl must be positive")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", c.Log.Format)
	}

	return nil
}
