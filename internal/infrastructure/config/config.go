// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	loginURL := cfg.Backoffice.LoginURL()
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Backoffice    BackofficeConfig    `yaml:"backoffice"`
	Firebase      FirebaseConfig      `yaml:"firebase"`
	Sync          SyncConfig          `yaml:"sync"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// BackofficeConfig holds merchant back-office endpoints and credentials
type BackofficeConfig struct {
	BaseURL    string `yaml:"base_url"`
	LoginPath  string `yaml:"login_path"`
	OrdersPath string `yaml:"orders_path"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	UserAgent  string `yaml:"user_agent"`
}

// LoginURL returns the absolute login endpoint URL
func (b BackofficeConfig) LoginURL() string {
	return b.BaseURL + b.LoginPath
}

// OrdersURL returns the absolute order-search endpoint URL
func (b BackofficeConfig) OrdersURL() string {
	return b.BaseURL + b.OrdersPath
}

// FirebaseConfig holds the Realtime Database connection and bucket names
type FirebaseConfig struct {
	DatabaseURL       string `yaml:"database_url"`
	AuthToken         string `yaml:"auth_token"`
	OrdersCollection  string `yaml:"orders_collection"`
	AutoCollection    string `yaml:"auto_collection"`
	SyncLogCollection string `yaml:"sync_log_collection"`
}

// SyncConfig holds poll-loop settings
type SyncConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	LookbackDays    int `yaml:"lookback_days"`
	MaxOrders       int `yaml:"max_orders"`
}

// StorageConfig holds local storage paths
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ProductsPath string `yaml:"products_path"`
	CookieFile   string `yaml:"cookie_file"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${TONGLIAN_PASSWORD})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Backoffice: BackofficeConfig{
			BaseURL:    getEnv("TONGLIAN_BASE_URL", "https://cus.allinpay.com"),
			LoginPath:  getEnv("TONGLIAN_LOGIN_PATH", "/login"),
			OrdersPath: getEnv("TONGLIAN_ORDERS_PATH", "/tranx/search"),
			Username:   os.Getenv("TONGLIAN_USERNAME"),
			Password:   os.Getenv("TONGLIAN_PASSWORD"),
		},
		Firebase: FirebaseConfig{
			DatabaseURL: os.Getenv("FIREBASE_DATABASE_URL"),
			AuthToken:   os.Getenv("FIREBASE_AUTH_TOKEN"),
		},
		Sync: SyncConfig{
			IntervalSeconds: getEnvInt("SYNC_INTERVAL", 60),
			LookbackDays:    getEnvInt("SYNC_LOOKBACK_DAYS", 0),
			MaxOrders:       getEnvInt("SYNC_MAX_ORDERS", 0),
		},
		Storage: StorageConfig{
			DatabasePath: getEnv("TONGLIAN_DB_PATH", "tonglian_sync.db"),
			ProductsPath: getEnv("TONGLIAN_PRODUCTS_PATH", "products.json"),
			CookieFile:   getEnv("TONGLIAN_COOKIE_FILE", "user.env"),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}

	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from specified path, falls back to environment variables
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills in values that must never be empty
func (c *Config) applyDefaults() {
	if c.Backoffice.BaseURL == "" {
		c.Backoffice.BaseURL = "https://cus.allinpay.com"
	}
	if c.Backoffice.LoginPath == "" {
		c.Backoffice.LoginPath = "/login"
	}
	if c.Backoffice.OrdersPath == "" {
		c.Backoffice.OrdersPath = "/tranx/search"
	}
	if c.Backoffice.UserAgent == "" {
		c.Backoffice.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if c.Firebase.OrdersCollection == "" {
		c.Firebase.OrdersCollection = "orders"
	}
	if c.Firebase.AutoCollection == "" {
		c.Firebase.AutoCollection = "orders_auto"
	}
	if c.Firebase.SyncLogCollection == "" {
		c.Firebase.SyncLogCollection = "sync_logs"
	}
	if c.Sync.IntervalSeconds <= 0 {
		c.Sync.IntervalSeconds = 60
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "tonglian_sync.db"
	}
	if c.Storage.ProductsPath == "" {
		c.Storage.ProductsPath = "products.json"
	}
	if c.Storage.CookieFile == "" {
		c.Storage.CookieFile = "user.env"
	}
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}
