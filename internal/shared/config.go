package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Matching MatchingConfig `toml:"matching"`
	Ingest   IngestConfig   `toml:"ingest"`
	Audit    AuditConfig    `toml:"audit"`
	Source   SourceConfig   `toml:"source"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host      string  `toml:"host"`
	Port      int     `toml:"port"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
	Burst     int     `toml:"burst"`
	MaxUpload int64   `toml:"max_upload_bytes"`
}

// MatchingConfig holds the identity resolution parameters.
//
// The defaults are starting points for tuning against real libraries, not fixed requirements.
type MatchingConfig struct {
	SimilarityThreshold   float64 `toml:"similarity_threshold"`
	DurationBucketSeconds int     `toml:"duration_bucket_seconds"`
	TitleWeight           float64 `toml:"title_weight"`
	ArtistWeight          float64 `toml:"artist_weight"`
	LowConfidenceFactor   float64 `toml:"low_confidence_factor"`
	MaxTokenPostings      int     `toml:"max_token_postings"`
}

// IngestConfig controls batch parsing and chunked apply.
type IngestConfig struct {
	ChunkSize int `toml:"chunk_size"`
	Workers   int `toml:"workers"`
}

// AuditConfig controls attribution of catalog edits.
type AuditConfig struct {
	User string `toml:"user"`
}

// SourceConfig points at an external playlist listing service.
//
// The token is read from the environment variable named by TokenEnv so it never lands in the file.
type SourceConfig struct {
	BaseURL   string  `toml:"base_url"`
	TokenEnv  string  `toml:"token_env"`
	PageSize  int     `toml:"page_size"`
	RateLimit float64 `toml:"rate_limit"` // requests per second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks value ranges that would otherwise silently break matching or ingestion.
func (c *Config) Validate() error {
	m := c.Matching
	if m.SimilarityThreshold <= 0 || m.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: matching.similarity_threshold must be in (0, 1], got %v", ErrInvalidConfig, m.SimilarityThreshold)
	}
	if m.DurationBucketSeconds <= 0 {
		return fmt.Errorf("%w: matching.duration_bucket_seconds must be positive, got %d", ErrInvalidConfig, m.DurationBucketSeconds)
	}
	if m.TitleWeight < 0 || m.ArtistWeight < 0 || m.TitleWeight+m.ArtistWeight == 0 {
		return fmt.Errorf("%w: matching weights must be non-negative and not both zero", ErrInvalidConfig)
	}
	if m.LowConfidenceFactor <= 0 || m.LowConfidenceFactor > 1 {
		return fmt.Errorf("%w: matching.low_confidence_factor must be in (0, 1], got %v", ErrInvalidConfig, m.LowConfidenceFactor)
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("%w: ingest.chunk_size must be positive, got %d", ErrInvalidConfig, c.Ingest.ChunkSize)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
