// Package config provides application configuration with multi-source
// priority:
//
//  1. Environment variables (RAGKIT_*, runtime override)
//  2. Config file (~/.ragkit/config.yaml)
//  3. Defaults
//
// Categories: embedding provider, chunking, rate limiting, search, and
// storage (file or PostgreSQL backend). Sensitive values are never
// logged.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for validation failures; wrap with fmt.Errorf("%w: ...").
var (
	ErrInvalidProvider     = errors.New("invalid embedding provider")
	ErrInvalidChunking     = errors.New("invalid chunking settings")
	ErrInvalidRateLimit    = errors.New("invalid rate limit settings")
	ErrInvalidSearch       = errors.New("invalid search settings")
	ErrInvalidStorage      = errors.New("invalid storage settings")
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")
)

// Supported embedding providers.
const (
	ProviderGoogleAI = "googleai"
	ProviderHash     = "hash" // deterministic offline embedder
)

// Storage backends.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Config holds all application settings.
type Config struct {
	// Embedding provider
	Provider      string `mapstructure:"provider"`
	EmbedderModel string `mapstructure:"embedder_model"`

	// Chunking
	ChunkMaxTokens    int `mapstructure:"chunk_max_tokens"`
	ChunkOverlapChars int `mapstructure:"chunk_overlap_chars"`

	// Rate limiting
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	Concurrency       int     `mapstructure:"concurrency"`
	MaxRetries        int     `mapstructure:"max_retries"`
	BaseBackoffMs     int     `mapstructure:"base_backoff_ms"`
	SafetyFactor      float64 `mapstructure:"safety_factor"`

	// Search
	TopK      int     `mapstructure:"top_k"`
	Threshold float64 `mapstructure:"threshold"`

	// Storage
	StorageBackend   string `mapstructure:"storage_backend"`
	DataDir          string `mapstructure:"data_dir"`
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`
}

// Load reads configuration from file, environment, and defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configDir, err := Dir()
	if err != nil {
		return nil, err
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("RAGKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No file is fine; defaults plus environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Dir returns the configuration directory (~/.ragkit), creating it
// with restricted permissions if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragkit")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGoogleAI)
	v.SetDefault("embedder_model", "gemini-embedding-001")

	v.SetDefault("chunk_max_tokens", 450)
	v.SetDefault("chunk_overlap_chars", 50)

	v.SetDefault("requests_per_minute", 300)
	v.SetDefault("tokens_per_minute", 150000)
	v.SetDefault("concurrency", 4)
	v.SetDefault("max_retries", 5)
	v.SetDefault("base_backoff_ms", 500)
	v.SetDefault("safety_factor", 0.8)

	v.SetDefault("top_k", 5)
	v.SetDefault("threshold", 0.0)

	v.SetDefault("storage_backend", StorageFile)
	v.SetDefault("data_dir", "")
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "ragkit")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_dbname", "ragkit")
	v.SetDefault("postgres_sslmode", "disable")
}

// VectorDir returns the directory for the file storage backend,
// defaulting to <config dir>/vectors when data_dir is unset.
func (c *Config) VectorDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vectors"), nil
}

// Validate checks all settings and returns the first violation.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGoogleAI, ProviderHash:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Provider)
	}

	if c.ChunkMaxTokens < 1 {
		return fmt.Errorf("%w: chunk_max_tokens must be at least 1, got %d", ErrInvalidChunking, c.ChunkMaxTokens)
	}
	if c.ChunkOverlapChars < 0 {
		return fmt.Errorf("%w: chunk_overlap_chars must not be negative, got %d", ErrInvalidChunking, c.ChunkOverlapChars)
	}

	if c.RequestsPerMinute < 1 || c.TokensPerMinute < 1 {
		return fmt.Errorf("%w: rates must be positive", ErrInvalidRateLimit)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidRateLimit, c.Concurrency)
	}
	if c.SafetyFactor <= 0 || c.SafetyFactor > 1 {
		return fmt.Errorf("%w: safety_factor must be in (0, 1], got %g", ErrInvalidRateLimit, c.SafetyFactor)
	}
	if c.MaxRetries < 0 || c.BaseBackoffMs < 1 {
		return fmt.Errorf("%w: retries and backoff must be sensible", ErrInvalidRateLimit)
	}

	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidSearch, c.TopK)
	}
	if c.Threshold < -1 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be in [-1, 1], got %g", ErrInvalidSearch, c.Threshold)
	}

	switch c.StorageBackend {
	case StorageFile:
	case StoragePostgres:
		if c.PostgresHost == "" || c.PostgresDBName == "" || c.PostgresUser == "" {
			return fmt.Errorf("%w: postgres host, user, and dbname are required", ErrInvalidStorage)
		}
		if c.PostgresPort < 1 || c.PostgresPort > 65535 {
			return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStorage, c.StorageBackend)
	}

	return nil
}
