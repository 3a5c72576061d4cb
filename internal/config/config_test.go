package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securechat/securechat/internal/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2048, cfg.Crypto.KeyBits)
	assert.Equal(t, 100000, cfg.Crypto.KDFIterations)
	assert.Equal(t, 15*time.Minute, cfg.Verify.TTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "missing addr",
			mutate:  func(c *config.Config) { c.Server.Addr = "" },
			wantErr: "server.addr",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.Store.Backend = "postgres" },
			wantErr: "store backend",
		},
		{
			name: "sqlite without path",
			mutate: func(c *config.Config) {
				c.Store.Backend = "sqlite"
				c.Store.Path = ""
			},
			wantErr: "store.path",
		},
		{
			name:    "weak key",
			mutate:  func(c *config.Config) { c.Crypto.KeyBits = 1024 },
			wantErr: "key_bits",
		},
		{
			name:    "weak kdf",
			mutate:  func(c *config.Config) { c.Crypto.KDFIterations = 100 },
			wantErr: "kdf_iterations",
		},
		{
			name:    "bad log format",
			mutate:  func(c *config.Config) { c.Log.Format = "xml" },
			wantErr: "log format",
		},
		{
			name:   "memory backend needs no path",
			mutate: func(c *config.Config) { c.Store.Backend = "memory"; c.Store.Path = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "securechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
store:
  backend: memory
crypto:
  kdf_iterations: 200000
log:
  level: debug
  format: json
`), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 200000, cfg.Crypto.KDFIterations)
	assert.Equal(t, "json", cfg.Log.Format)
	// Defaults survive for unset keys.
	assert.Equal(t, 2048, cfg.Crypto.KeyBits)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SECURECHAT_SERVER_ADDR", ":7070")
	t.Setenv("SECURECHAT_STORE_BACKEND", "memory")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
