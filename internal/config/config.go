package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the coachd configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	AI        AIConfig        `yaml:"ai"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// KnowledgeConfig holds passage store and retrieval settings.
type KnowledgeConfig struct {
	Path           string   `yaml:"path"`             // persisted passage file
	ChunkSizeWords int      `yaml:"chunk_size_words"` // fallback window size for the offline build
	TopK           int      `yaml:"top_k"`
	MarkerLabel    string   `yaml:"marker_label"` // structural header label, e.g. "Week"
	Boilerplate    []string `yaml:"boilerplate"`  // phrases stripped before chunking
}

// AIConfig holds the external model provider settings.
type AIConfig struct {
	APIKey            string           `yaml:"api_key"`
	BaseURL           string           `yaml:"base_url"`
	RequestTimeoutSec int              `yaml:"request_timeout_sec"`
	Embedding         EmbeddingConfig  `yaml:"embedding"`
	Completion        CompletionConfig `yaml:"completion"`
}

// EmbeddingConfig holds the embedding model settings.
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"` // 0 = model default
}

// CompletionConfig holds the completion model settings.
type CompletionConfig struct {
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature float32  `yaml:"temperature"`
	Stop        []string `yaml:"stop"`
}

// CacheConfig holds the optional embedding cache connection settings.
// Empty addrs disable the cache.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR} / ${VAR:-default}
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Knowledge.Path == "" {
		c.Knowledge.Path = "embeddings.json"
	}
	if c.Knowledge.ChunkSizeWords <= 0 {
		c.Knowledge.ChunkSizeWords = 200
	}
	if c.Knowledge.TopK <= 0 {
		c.Knowledge.TopK = 3
	}
	if c.Knowledge.MarkerLabel == "" {
		c.Knowledge.MarkerLabel = "Week"
	}
	if c.AI.RequestTimeoutSec <= 0 {
		c.AI.RequestTimeoutSec = 10
	}
	if c.AI.Embedding.Model == "" {
		c.AI.Embedding.Model = "text-embedding-ada-002"
	}
	if c.AI.Completion.Model == "" {
		c.AI.Completion.Model = "text-davinci-003"
	}
	if c.AI.Completion.MaxTokens <= 0 {
		c.AI.Completion.MaxTokens = 256
	}
	if c.AI.Completion.Temperature <= 0 {
		c.AI.Completion.Temperature = 0.7
	}
	if len(c.AI.Completion.Stop) == 0 {
		c.AI.Completion.Stop = []string{"\n"}
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required")
	}
	if c.AI.Completion.Temperature < 0 || c.AI.Completion.Temperature > 2 {
		return fmt.Errorf("ai.completion.temperature must be in [0, 2], got %v", c.AI.Completion.Temperature)
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
