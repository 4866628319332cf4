// Package config loads the sync daemon configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreVersion is the schema version the local store is opened at.
const StoreVersion = 1

// Config represents the full configuration surface.
type Config struct {
	Store  StoreConfig
	API    APIConfig
	Sync   SyncConfig
	Server ServerConfig
	Bill   BillingConfig
	Log    LogConfig
}

// StoreConfig locates the local durable store.
type StoreConfig struct {
	DataDir string
	Name    string
}

// APIConfig describes the shop's remote REST API.
type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// SyncConfig holds queue and trigger settings.
type SyncConfig struct {
	Interval       time.Duration
	MaxRetries     int
	StartOnline    bool
	BackgroundSync bool
}

// ServerConfig holds the local HTTP surface options.
type ServerConfig struct {
	ListenAddr     string
	AllowedOrigins []string
}

// BillingConfig holds bill total settings.
type BillingConfig struct {
	VATRate string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// A missing .env is fine when everything comes from the environment.
		_ = godotenv.Load()
	}

	timeout, err := getenvDuration("API_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	interval, err := getenvDuration("SYNC_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getenvInt("SYNC_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	startOnline, err := getenvBool("START_ONLINE", true)
	if err != nil {
		return nil, err
	}
	background, err := getenvBool("BACKGROUND_SYNC", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Store: StoreConfig{
			DataDir: getenvWithDefault("POSSYNC_DATA_DIR", "./data"),
			Name:    getenvWithDefault("POSSYNC_STORE_NAME", "tajir_pos"),
		},
		API: APIConfig{
			BaseURL: os.Getenv("API_BASE_URL"),
			Token:   os.Getenv("API_TOKEN"),
			Timeout: timeout,
		},
		Sync: SyncConfig{
			Interval:       interval,
			MaxRetries:     maxRetries,
			StartOnline:    startOnline,
			BackgroundSync: background,
		},
		Server: ServerConfig{
			ListenAddr:     getenvWithDefault("POSSYNC_LISTEN_ADDR", "127.0.0.1:8090"),
			AllowedOrigins: splitList(getenvWithDefault("POSSYNC_ALLOWED_ORIGINS", "http://localhost:5000,http://127.0.0.1:5000")),
		},
		Bill: BillingConfig{
			VATRate: getenvWithDefault("VAT_RATE", "5"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch {
	case c.Store.DataDir == "":
		return errors.New("POSSYNC_DATA_DIR must not be empty")
	case c.Store.Name == "":
		return errors.New("POSSYNC_STORE_NAME must not be empty")
	case c.API.BaseURL == "":
		return errors.New("API_BASE_URL must be provided")
	}

	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("API_TIMEOUT must be positive")
	}
	if c.Sync.Interval < time.Second {
		return errors.New("SYNC_INTERVAL must be at least 1s")
	}
	if c.Sync.MaxRetries < 1 {
		return errors.New("SYNC_MAX_RETRIES must be at least 1")
	}
	if c.Server.ListenAddr == "" {
		return errors.New("POSSYNC_LISTEN_ADDR must not be empty")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
