package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
)

// Index drivers.
const (
	DriverValkey   = "valkey"
	DriverRedis    = "redis"
	DriverPGVector = "pgvector"
)

// Responder agents.
const (
	AgentOpenAI = "openai"
	AgentGemini = "gemini"
)

// Config holds the shelfsearch configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Index     IndexConfig     `yaml:"index"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Responder ResponderConfig `yaml:"responder"`
	Events    EventsConfig    `yaml:"events"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)

	// File enables a rotated log file next to stderr output.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
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

// IndexConfig selects and configures the vector index.
type IndexConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, pgvector (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`

	// URL and Table apply to pgvector; URL defaults to catalog.url.
	URL   string `yaml:"url"`
	Table string `yaml:"table"`
}

// UsesRedis reports whether the index lives in a Redis-compatible store.
func (c IndexConfig) UsesRedis() bool {
	return c.Driver == DriverValkey || c.Driver == DriverRedis
}

// CatalogConfig holds the record store connection.
type CatalogConfig struct {
	URL                string `yaml:"url"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
	InitSchema         bool   `yaml:"init_schema"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string      `yaml:"provider"`
	APIKey     string      `yaml:"api_key"`
	BaseURL    string      `yaml:"base_url"`
	Model      string      `yaml:"model"`
	Dimensions int         `yaml:"dimensions"`
	User       string      `yaml:"user"`
	Cache      CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings. The cache needs a
// Redis-compatible store: Addrs, or the index store when it is one.
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLSec   int      `yaml:"ttl_sec"` // 0 = keep forever
}

// SearchConfig holds engine tunables.
type SearchConfig struct {
	FieldWeights map[string]float64 `yaml:"field_weights"`

	// DefaultMaxDistance is a pointer so an explicit 0 can disable the threshold.
	DefaultMaxDistance *float64 `yaml:"default_max_distance"`
	DefaultPage        int      `yaml:"default_page"`
	DefaultLimit       int      `yaml:"default_limit"`
	MaxLimit           int      `yaml:"max_limit"`
	OverFetch          int      `yaml:"overfetch"`
	SyncBatchSize      int      `yaml:"sync_batch_size"`
	CallTimeoutMS      int      `yaml:"call_timeout_ms"`
	ClearTimeoutMS     int      `yaml:"clear_timeout_ms"`
}

// ResponderConfig holds the conversational reply agents.
type ResponderConfig struct {
	DefaultAgent string      `yaml:"default_agent"`
	TimeoutSec   int         `yaml:"timeout_sec"`
	OpenAI       OpenAIAgent `yaml:"openai"`
	Gemini       GeminiAgent `yaml:"gemini"`
}

// OpenAIAgent configures the chat completion agent. APIKey and BaseURL
// default to the embedding provider's.
type OpenAIAgent struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// GeminiAgent configures the Gemini agent; it is disabled without an APIKey.
type GeminiAgent struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// EventsConfig holds the record change event consumer; it is disabled without a NATSURL.
type EventsConfig struct {
	NATSURL      string `yaml:"nats_url"`
	Stream       string `yaml:"stream"`
	Subject      string `yaml:"subject"`
	Durable      string `yaml:"durable"`
	RetryDelayMS int    `yaml:"retry_delay_ms"`
}

// Enabled reports whether the consumer should start.
func (c EventsConfig) Enabled() bool { return c.NATSURL != "" }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment references in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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

	if c.Index.Driver == "" {
		c.Index.Driver = DriverValkey
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "shelfsearch:"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.ReadinessTimeout <= 0 {
		c.Index.ReadinessTimeout = 10
	}
	if c.Index.URL == "" {
		c.Index.URL = c.Catalog.URL
	}

	if c.Catalog.MaxOpenConns <= 0 {
		c.Catalog.MaxOpenConns = 25
	}
	if c.Catalog.MaxIdleConns <= 0 {
		c.Catalog.MaxIdleConns = 5
	}
	if c.Catalog.ConnMaxLifetimeSec <= 0 {
		c.Catalog.ConnMaxLifetimeSec = 300
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}

	d := domain.DefaultEngineConfig()
	if c.Search.DefaultMaxDistance == nil {
		v := d.DefaultMaxDistance
		c.Search.DefaultMaxDistance = &v
	}
	if c.Search.DefaultPage <= 0 {
		c.Search.DefaultPage = d.DefaultPage
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = d.DefaultLimit
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = d.MaxLimit
	}
	if c.Search.OverFetch <= 0 {
		c.Search.OverFetch = d.OverFetch
	}
	if c.Search.SyncBatchSize <= 0 {
		c.Search.SyncBatchSize = d.SyncBatchSize
	}
	if c.Search.CallTimeoutMS <= 0 {
		c.Search.CallTimeoutMS = int(d.CallTimeout / time.Millisecond)
	}
	if c.Search.ClearTimeoutMS <= 0 {
		c.Search.ClearTimeoutMS = int(d.ClearTimeout / time.Millisecond)
	}

	if c.Responder.DefaultAgent == "" {
		c.Responder.DefaultAgent = AgentOpenAI
	}
	if c.Responder.TimeoutSec <= 0 {
		c.Responder.TimeoutSec = 15
	}
	if c.Responder.OpenAI.APIKey == "" {
		c.Responder.OpenAI.APIKey = c.Embedding.APIKey
	}
	if c.Responder.OpenAI.BaseURL == "" {
		c.Responder.OpenAI.BaseURL = c.Embedding.BaseURL
	}

	if c.Events.Stream == "" {
		c.Events.Stream = "CATALOG"
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "catalog.products"
	}
	if c.Events.Durable == "" {
		c.Events.Durable = "shelfsearch-indexer"
	}
	if c.Events.RetryDelayMS <= 0 {
		c.Events.RetryDelayMS = 5000
	}

	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 28
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Index.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Index.Addrs) == 0 {
			return fmt.Errorf("index.addrs is required for driver %q", c.Index.Driver)
		}
	case DriverPGVector:
		if c.Index.URL == "" {
			return fmt.Errorf("index.url or catalog.url is required for driver %q", c.Index.Driver)
		}
	default:
		return fmt.Errorf("index.driver must be one of valkey, redis, pgvector, got %q", c.Index.Driver)
	}

	if c.Catalog.URL == "" {
		return fmt.Errorf("catalog.url is required")
	}

	if c.Embedding.Provider != "openai" {
		return fmt.Errorf("embedding.provider must be \"openai\" (any OpenAI-compatible base_url), got %q",
			c.Embedding.Provider)
	}
	if c.Embedding.Cache.Enabled && len(c.Embedding.Cache.Addrs) == 0 && !c.Index.UsesRedis() {
		return fmt.Errorf("embedding.cache.addrs is required when the index driver is %q", c.Index.Driver)
	}

	switch c.Responder.DefaultAgent {
	case AgentOpenAI, AgentGemini:
	default:
		return fmt.Errorf("responder.default_agent must be \"openai\" or \"gemini\", got %q", c.Responder.DefaultAgent)
	}

	if _, err := document.NewWeightTable(c.Search.FieldWeights); err != nil {
		return fmt.Errorf("search.field_weights: %w", err)
	}
	if err := c.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return nil
}

// EngineConfig converts the search section into the engine's immutable config.
func (c *Config) EngineConfig() domain.EngineConfig {
	e := domain.EngineConfig{
		FieldWeights:       c.Search.FieldWeights,
		DefaultPage:        c.Search.DefaultPage,
		DefaultLimit:       c.Search.DefaultLimit,
		MaxLimit:           c.Search.MaxLimit,
		OverFetch:          c.Search.OverFetch,
		SyncBatchSize:      c.Search.SyncBatchSize,
		CallTimeout:        time.Duration(c.Search.CallTimeoutMS) * time.Millisecond,
		ClearTimeout:       time.Duration(c.Search.ClearTimeoutMS) * time.Millisecond,
	}
	if c.Search.DefaultMaxDistance != nil {
		e.DefaultMaxDistance = *c.Search.DefaultMaxDistance
	}
	return e
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
