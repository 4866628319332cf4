package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://shop.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.Store.DataDir)
	assert.Equal(t, "tajir_pos", cfg.Store.Name)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 3, cfg.Sync.MaxRetries)
	assert.True(t, cfg.Sync.StartOnline)
	assert.True(t, cfg.Sync.BackgroundSync)
	assert.Equal(t, "127.0.0.1:8090", cfg.Server.ListenAddr)
	assert.Equal(t, []string{"http://localhost:5000", "http://127.0.0.1:5000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "5", cfg.Bill.VATRate)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_envFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "possync.env")
	content := "API_BASE_URL=http://10.0.0.2:5000\nSYNC_INTERVAL=30s\nSYNC_MAX_RETRIES=5\nSTART_ONLINE=false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv does not override variables that are already set.
	for _, key := range []string{"API_BASE_URL", "SYNC_INTERVAL", "SYNC_MAX_RETRIES", "START_ONLINE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	t.Cleanup(func() {
		for _, key := range []string{"API_BASE_URL", "SYNC_INTERVAL", "SYNC_MAX_RETRIES", "START_ONLINE"} {
			os.Unsetenv(key)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.2:5000", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 5, cfg.Sync.MaxRetries)
	assert.False(t, cfg.Sync.StartOnline)
}

func TestLoad_invalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "SYNC_INTERVAL", "five minutes"},
		{"bad int", "SYNC_MAX_RETRIES", "three"},
		{"bad bool", "START_ONLINE", "maybe"},
		{"bad timeout", "API_TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("API_BASE_URL", "https://shop.example.com")
			t.Setenv(tt.key, tt.val)

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:  StoreConfig{DataDir: "./data", Name: "tajir_pos"},
			API:    APIConfig{BaseURL: "https://shop.example.com", Timeout: time.Second},
			Sync:   SyncConfig{Interval: time.Minute, MaxRetries: 3},
			Server: ServerConfig{ListenAddr: ":8090"},
		}
	}

	require.NoError(t, valid().Validate())

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }},
		{"non http base url", func(c *Config) { c.API.BaseURL = "ftp://shop" }},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"short interval", func(c *Config) { c.Sync.Interval = time.Millisecond }},
		{"zero retries", func(c *Config) { c.Sync.MaxRetries = 0 }},
		{"empty store name", func(c *Config) { c.Store.Name = "" }},
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
