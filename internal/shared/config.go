package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Source      SourceConfig      `toml:"source"`
	Destination DestinationConfig `toml:"destination"`
	Store       StoreConfig       `toml:"store"`
	Database    DatabaseConfig    `toml:"database"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Server      ServerConfig      `toml:"server"`
}

// SourceConfig contains the Flickr account, API credentials and session cookies.
//
// The cookies are only sent when downloading videos, which require a logged-in session.
type SourceConfig struct {
	UserID           string  `toml:"user_id"`
	APIKey           string  `toml:"api_key"`
	APISecret        string  `toml:"api_secret"`
	OAuthToken       string  `toml:"oauth_token"`
	OAuthTokenSecret string  `toml:"oauth_token_secret"`
	CookieSession    string  `toml:"cookie_session"`
	CookieEpass      string  `toml:"cookie_epass"`
	BaseURL          string  `toml:"base_url"`
	PerPage          int     `toml:"per_page"`
	RateLimit        float64 `toml:"rate_limit"`
}

// DestinationConfig contains Google Photos OAuth2 client settings.
type DestinationConfig struct {
	ClientID     string  `toml:"client_id"`
	ClientSecret string  `toml:"client_secret"`
	RedirectURI  string  `toml:"redirect_uri"`
	TokenPath    string  `toml:"token_path"`
	BaseURL      string  `toml:"base_url"`
	RateLimit    float64 `toml:"rate_limit"`
}

// StoreConfig selects the entity store backend and its root.
type StoreConfig struct {
	Backend   string `toml:"backend"` // fs or sqlite
	Root      string `toml:"root"`
	MediaRoot string `toml:"media_root"` // downloaded files, one subdirectory per collection
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PipelineConfig bounds batching and retries for the stage processors.
type PipelineConfig struct {
	RetryLimit        int `toml:"retry_limit"`
	RetryDelaySeconds int `toml:"retry_delay_seconds"`
	SourceBatchSize   int `toml:"source_batch_size"`
	UploadBatchSize   int `toml:"upload_batch_size"`
	ContentBatchLimit int `toml:"content_batch_limit"`
}

// RetryDelay is the pause between orchestrator passes.
func (p PipelineConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelaySeconds) * time.Second
}

// ServerConfig contains settings for the local OAuth callback listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
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

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and atomically replaces the file at path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0600)
}

// Validate reports invalid batch sizes and retry limits.
func (c *Config) Validate() error {
	checks := []struct {
		name  string
		value int
	}{
		{"pipeline.retry_limit", c.Pipeline.RetryLimit},
		{"pipeline.source_batch_size", c.Pipeline.SourceBatchSize},
		{"pipeline.upload_batch_size", c.Pipeline.UploadBatchSize},
		{"pipeline.content_batch_limit", c.Pipeline.ContentBatchLimit},
		{"source.per_page", c.Source.PerPage},
	}
	for _, check := range checks {
		if check.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, check.name, check.value)
		}
	}
	if c.Pipeline.RetryDelaySeconds < 0 {
		return fmt.Errorf("%w: pipeline.retry_delay_seconds must not be negative", ErrInvalidConfig)
	}
	switch c.Store.Backend {
	case "fs", "sqlite":
	default:
		return fmt.Errorf("%w: %q", ErrStoreBackend, c.Store.Backend)
	}
	return nil
}

// Set assigns value to a dotted key such as "source.user_id", converting it to the key's type.
func (c *Config) Set(key, value string) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" {
		return fmt.Errorf("%w: key must look like section.name, got %q", ErrInvalidArgument, key)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tree := map[string]any{}
	if err := toml.Unmarshal(buf.Bytes(), &tree); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	table, ok := tree[section].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: unknown section %q", ErrInvalidArgument, section)
	}
	current, ok := table[field]
	if !ok {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidArgument, key)
	}

	switch current.(type) {
	case int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects an integer", ErrInvalidArgument, key)
		}
		table[field] = n
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number", ErrInvalidArgument, key)
		}
		table[field] = f
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects true or false", ErrInvalidArgument, key)
		}
		table[field] = b
	default:
		table[field] = value
	}

	buf.Reset()
	if err := toml.NewEncoder(&buf).Encode(tree); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	var updated Config
	if err := toml.Unmarshal(buf.Bytes(), &updated); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	*c = updated
	return nil
}
