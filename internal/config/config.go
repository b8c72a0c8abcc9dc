// Package config loads the movies service configuration from a YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultReadTimeout is the default HTTP read timeout.
	DefaultReadTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default HTTP write timeout.
	DefaultWriteTimeout = 30 * time.Second
	// DefaultOmdbTimeout is the default timeout for OMDB API calls.
	DefaultOmdbTimeout = 10 * time.Second
	// DefaultMaxPages caps how many search pages a single fetch job hits.
	DefaultMaxPages = 5
	// DefaultSearchTerm is used when a fetch request carries no search term.
	DefaultSearchTerm = "space"
	// DefaultYear is used when a fetch request carries no year filter.
	DefaultYear = "2020"
)

// Config is the root configuration for the service.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Omdb     OmdbConfig     `yaml:"omdb"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address      string        `yaml:"address"`       // e.g., ":8080"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // Default: 30s
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// MigrationsPath points to the golang-migrate file source.
	MigrationsPath string `yaml:"migrations_path"`
}

// RedisConfig configures the response cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// OmdbConfig configures the external catalog API client.
type OmdbConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// FetchConfig tunes the fetch orchestrator.
type FetchConfig struct {
	MaxPages          int    `yaml:"max_pages"`
	DefaultSearchTerm string `yaml:"default_search_term"`
	DefaultYear       string `yaml:"default_year"`
}

// Load reads configuration from path, applies defaults and environment
// overrides, and validates the result. A missing config file is not an
// error; defaults and environment variables alone are enough to run.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := yaml.Unmarshal(data, &cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("parse config: %w", unmarshalErr)
		}
	case os.IsNotExist(err):
		// Fall through to defaults + env.
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validateErr)
	}

	return &cfg, nil
}

// Validate checks the configuration for required values.
func (c *Config) Validate() error {
	if c.Omdb.APIKey == "" {
		return errors.New("omdb.api_key is required (set OMDB_API_KEY)")
	}
	if c.Omdb.URL == "" {
		return errors.New("omdb.url is required")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Fetch.MaxPages <= 0 {
		return fmt.Errorf("fetch.max_pages must be positive, got %d", c.Fetch.MaxPages)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "movies"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = "migrations"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Omdb.URL == "" {
		cfg.Omdb.URL = "http://www.omdbapi.com"
	}
	if cfg.Omdb.Timeout == 0 {
		cfg.Omdb.Timeout = DefaultOmdbTimeout
	}
	if cfg.Fetch.MaxPages == 0 {
		cfg.Fetch.MaxPages = DefaultMaxPages
	}
	if cfg.Fetch.DefaultSearchTerm == "" {
		cfg.Fetch.DefaultSearchTerm = DefaultSearchTerm
	}
	if cfg.Fetch.DefaultYear == "" {
		cfg.Fetch.DefaultYear = DefaultYear
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("MOVIES_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("OMDB_API_URL"); v != "" {
		cfg.Omdb.URL = v
	}
	if v := os.Getenv("OMDB_API_KEY"); v != "" {
		cfg.Omdb.APIKey = v
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
}

// parseBool returns true for "true", "1" and "yes" (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
