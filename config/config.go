package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Crawler  CrawlerConfig
	Store    StoreConfig
	Snapshot SnapshotConfig
	Cache    CacheConfig
	Session  SessionConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CrawlerConfig holds the external crawl service configuration
type CrawlerConfig struct {
	URL               string        `mapstructure:"url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// StoreConfig selects and configures the persisted price store
type StoreConfig struct {
	Type              string        `mapstructure:"type"` // "strapi", "postgres" or "memory"
	BaseURL           string        `mapstructure:"base_url"`
	APIToken          string        `mapstructure:"api_token"`
	Collection        string        `mapstructure:"collection"`
	PageSize          int           `mapstructure:"page_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	PostgresDSN       string        `mapstructure:"postgres_dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
}

// SnapshotConfig controls how daily snapshots are scoped
type SnapshotConfig struct {
	Timezone string   `mapstructure:"timezone"` // "Local", "UTC" or an IANA name
	Sites    []string `mapstructure:"sites"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// SessionConfig holds the durable session cache configuration
type SessionConfig struct {
	Driver        string        `mapstructure:"driver"` // "sqlite" or "mysql"
	DSN           string        `mapstructure:"dsn"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`   // in-memory eviction
	Retention     time.Duration `mapstructure:"retention"`      // durable pruning, 0 keeps rows forever
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Location resolves the configured snapshot time zone.
func (s SnapshotConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || strings.EqualFold(s.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricetrail/")

	// PRICETRAIL_STORE_BASE_URL -> store.base_url
	v.SetEnvPrefix("PRICETRAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env into the process environment when present.
// Variables that are already set are never overridden.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "15s")

	// Crawler defaults
	v.SetDefault("crawler.url", "http://127.0.0.1:8000/crawl")
	v.SetDefault("crawler.timeout", "120s") // crawls scrape live pages
	v.SetDefault("crawler.requests_per_second", 1.0)

	// Store defaults
	v.SetDefault("store.type", "strapi")
	v.SetDefault("store.base_url", "http://127.0.0.1:1337/api")
	v.SetDefault("store.api_token", "")
	v.SetDefault("store.collection", "crawls")
	v.SetDefault("store.page_size", 100)
	v.SetDefault("store.timeout", "10s")
	v.SetDefault("store.requests_per_second", 20.0)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.max_conns", 10)

	// Snapshot defaults
	v.SetDefault("snapshot.timezone", "Local")
	v.SetDefault("snapshot.sites", []string{"gmarket", "11st"})

	v.SetDefault("cache.ttl", "5m")

	v.SetDefault("session.driver", "sqlite")
	v.SetDefault("session.dsn", "crawl-storage.db")
	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.retention", "720h")
	v.SetDefault("session.sweep_interval", "5m")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Crawler.URL == "" {
		return fmt.Errorf("crawler URL is required (set PRICETRAIL_CRAWLER_URL)")
	}

	switch config.Store.Type {
	case "strapi":
		if config.Store.BaseURL == "" {
			return fmt.Errorf("store base URL is required when store type is 'strapi'")
		}
		if config.Store.Collection == "" {
			return fmt.Errorf("store collection is required when store type is 'strapi'")
		}
	case "postgres":
		if config.Store.PostgresDSN == "" {
			return fmt.Errorf("postgres DSN is required when store type is 'postgres'")
		}
	case "memory":
	default:
		return fmt.Errorf("store type must be 'strapi', 'postgres' or 'memory', got: %s", config.Store.Type)
	}

	if config.Store.PageSize <= 0 {
		return fmt.Errorf("store page size must be positive, got: %d", config.Store.PageSize)
	}

	if len(config.Snapshot.Sites) == 0 {
		return fmt.Errorf("at least one snapshot site is required")
	}

	if _, err := config.Snapshot.Location(); err != nil {
		return fmt.Errorf("invalid snapshot timezone %q: %w", config.Snapshot.Timezone, err)
	}

	if config.Session.Driver != "sqlite" && config.Session.Driver != "mysql" {
		return fmt.Errorf("session driver must be 'sqlite' or 'mysql', got: %s", config.Session.Driver)
	}

	if config.Session.DSN == "" {
		return fmt.Errorf("session DSN is required (set PRICETRAIL_SESSION_DSN)")
	}

	if config.Session.SweepInterval <= 0 || config.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session sweep interval and idle timeout must be positive")
	}

	return nil
}
