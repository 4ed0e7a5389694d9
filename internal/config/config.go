// Package config loads moviedex configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the moviedex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Search    SearchConfig    `yaml:"search"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// SearchConfig holds Meilisearch connection settings.
type SearchConfig struct {
	Address      string `yaml:"address"`
	APIKey       string `yaml:"api_key"`
	Index        string `yaml:"index"`
	PrimaryKey   string `yaml:"primary_key"`
	TimeoutSec   int    `yaml:"timeout_sec"` // 0 = bounded by the request context only
	WaitForTasks bool   `yaml:"wait_for_tasks"`
	TaskPollMs   int    `yaml:"task_poll_interval_ms"`
	// SettleTimeoutSec bounds the background watch of an unawaited write.
	SettleTimeoutSec int `yaml:"settle_timeout_sec"`
}

// CacheConfig holds the optional search result cache settings. Empty Addrs disables it.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	WriteTimeoutSec  int      `yaml:"write_timeout_sec"` // 0 = rueidis default
	TTLSec           int      `yaml:"ttl_sec"`
	EmbeddingTTLSec  int      `yaml:"embedding_ttl_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds hybrid search settings. Empty APIKey disables embeddings.
type EmbeddingConfig struct {
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	Model         string  `yaml:"model"`
	Dimensions    int     `yaml:"dimensions"`
	Embedder      string  `yaml:"embedder"`
	SemanticRatio float64 `yaml:"semantic_ratio"`
}

// Enabled reports whether the result cache is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

// Enabled reports whether hybrid search embeddings are configured.
func (c EmbeddingConfig) Enabled() bool { return c.APIKey != "" }

// Timeout returns the per-call backend timeout.
func (c SearchConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// PollInterval returns the task polling interval.
func (c SearchConfig) PollInterval() time.Duration { return time.Duration(c.TaskPollMs) * time.Millisecond }

// SettleTimeout returns how long an unawaited write is watched.
func (c SearchConfig) SettleTimeout() time.Duration {
	return time.Duration(c.SettleTimeoutSec) * time.Second
}

// WriteTimeout returns the Redis connection write timeout.
func (c CacheConfig) WriteTimeout() time.Duration { return time.Duration(c.WriteTimeoutSec) * time.Second }

// TTL returns the search result entry lifetime.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }

// EmbeddingTTL returns the cached embedding lifetime.
func (c CacheConfig) EmbeddingTTL() time.Duration { return time.Duration(c.EmbeddingTTLSec) * time.Second }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data and decodes it into a validated Config.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Search.Index == "" {
		c.Search.Index = "movies"
	}
	if c.Search.PrimaryKey == "" {
		c.Search.PrimaryKey = "id"
	}
	if c.Search.TaskPollMs <= 0 {
		c.Search.TaskPollMs = 50
	}
	if c.Search.SettleTimeoutSec <= 0 {
		c.Search.SettleTimeoutSec = 300
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 60
	}
	if c.Cache.EmbeddingTTLSec <= 0 {
		c.Cache.EmbeddingTTLSec = 86400
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "moviedex:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Embedder == "" {
		c.Embedding.Embedder = "default"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Search.Address == "" {
		return errors.New("search.address is required")
	}
	u, err := url.Parse(c.Search.Address)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("search.address must be an absolute http(s) URL, got %q", c.Search.Address)
	}
	if c.Search.TimeoutSec < 0 {
		return fmt.Errorf("search.timeout_sec must not be negative, got %d", c.Search.TimeoutSec)
	}
	if c.Cache.DB < 0 {
		return fmt.Errorf("cache.db must not be negative, got %d", c.Cache.DB)
	}
	if c.Cache.WriteTimeoutSec < 0 {
		return fmt.Errorf("cache.write_timeout_sec must not be negative, got %d", c.Cache.WriteTimeoutSec)
	}
	if c.Embedding.SemanticRatio < 0 || c.Embedding.SemanticRatio > 1 {
		return fmt.Errorf("embedding.semantic_ratio must be between 0 and 1, got %v", c.Embedding.SemanticRatio)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// loadDotEnv loads path into the process environment if it exists. Existing variables win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
