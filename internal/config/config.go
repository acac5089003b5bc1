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

// Config holds the aisearch API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Index    IndexConfig    `yaml:"index"`
	AI       AIConfig       `yaml:"ai"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds index store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds the document index layout.
type IndexConfig struct {
	Name      string `yaml:"name"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AIConfig holds AI provider settings.
type AIConfig struct {
	Provider            string       `yaml:"provider"`
	APIKey              string       `yaml:"api_key"`
	BaseURL             string       `yaml:"base_url"`
	EmbeddingModel      string       `yaml:"embedding_model"`
	EmbeddingDimensions int          `yaml:"embedding_dimensions"`
	RewriteModel        string       `yaml:"rewrite_model"`
	RerankModel         string       `yaml:"rerank_model"`
	RerankTimeoutSec    int          `yaml:"rerank_timeout_sec"`
	Rubric              RubricConfig `yaml:"rubric"`
}

// RubricConfig holds the 100-point rerank rubric split.
type RubricConfig struct {
	Semantic    int `yaml:"semantic"`
	Intent      int `yaml:"intent"`
	Quality     int `yaml:"quality"`
	Specificity int `yaml:"specificity"`
}

// SearchConfig holds ranking pipeline settings.
type SearchConfig struct {
	RetrievalLimit      int      `yaml:"retrieval_limit"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	LexicalWeight       float64  `yaml:"lexical_weight"`
	SourcePriority      []string `yaml:"source_priority"`
	CacheTTLSec         int      `yaml:"cache_ttl_sec"`
	CacheSize           int      `yaml:"cache_size"`
	AICacheSize         int      `yaml:"ai_cache_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

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
		c.HTTP.WriteTimeoutSec = 15
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Name == "" {
		c.Index.Name = "aisearch:doc:idx"
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "aisearch:doc:"
	}
	if c.AI.RerankTimeoutSec <= 0 {
		c.AI.RerankTimeoutSec = 4
	}
	if c.Search.RetrievalLimit <= 0 {
		c.Search.RetrievalLimit = 50
	}
	if c.Search.ConfidenceThreshold <= 0 {
		c.Search.ConfidenceThreshold = 0.85
	}
	if c.Search.LexicalWeight <= 0 {
		c.Search.LexicalWeight = 0.3
	}
	if c.Search.CacheTTLSec <= 0 {
		c.Search.CacheTTLSec = 300
	}
	if c.Search.CacheSize <= 0 {
		c.Search.CacheSize = 1024
	}
	if c.Search.AICacheSize <= 0 {
		c.Search.AICacheSize = 1000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Search.ConfidenceThreshold > 1 {
		return fmt.Errorf("search.confidence_threshold must be at most 1.0, got %g",
			c.Search.ConfidenceThreshold)
	}
	if c.Search.LexicalWeight > 1 {
		return fmt.Errorf("search.lexical_weight must be at most 1.0, got %g",
			c.Search.LexicalWeight)
	}
	if r := c.AI.Rubric; r != (RubricConfig{}) {
		if sum := r.Semantic + r.Intent + r.Quality + r.Specificity; sum != 100 {
			return fmt.Errorf("ai.rubric must sum to 100, got %d", sum)
		}
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
