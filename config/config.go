package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/ragops/observe"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "5m".
type Duration time.Duration

// UnmarshalYAML parses the duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full module configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	LLM        LLMConfig        `yaml:"llm"`
	Vector     VectorConfig     `yaml:"vector"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Rerank     RerankConfig     `yaml:"rerank"`
	Observe    ObserveConfig    `yaml:"observe"`
	Auth       AuthConfig       `yaml:"auth"`
	Secrets    SecretsConfig    `yaml:"secrets"`
}

// ServiceConfig identifies the deployment.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// StoreConfig selects and configures the shared store backend.
type StoreConfig struct {
	// Backend is one of "memory", "redis", "badger".
	Backend string       `yaml:"backend"`
	Redis   RedisConfig  `yaml:"redis"`
	Badger  BadgerConfig `yaml:"badger"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	// Password may be a secret reference.
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BadgerConfig configures the embedded Badger backend.
type BadgerConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	Enabled     bool     `yaml:"enabled"`
	EntryTTL    Duration `yaml:"entry_ttl"`
	TagTTLSlack Duration `yaml:"tag_ttl_slack"`
}

// RateLimitConfig configures the admission gate.
type RateLimitConfig struct {
	Enabled     bool     `yaml:"enabled"`
	MaxRequests int      `yaml:"max_requests"`
	Window      Duration `yaml:"window"`
}

// LLMConfig configures the OpenAI-compatible embedding and generation
// endpoint.
type LLMConfig struct {
	// APIKey may be a secret reference.
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	EmbeddingModel  string `yaml:"embedding_model"`
	GenerationModel string `yaml:"generation_model"`
}

// VectorConfig selects and configures the vector store.
type VectorConfig struct {
	// Backend is one of "memory", "weaviate".
	Backend  string         `yaml:"backend"`
	Weaviate WeaviateConfig `yaml:"weaviate"`
}

// WeaviateConfig configures the Weaviate vector store.
type WeaviateConfig struct {
	URL       string `yaml:"url"`
	ClassName string `yaml:"class_name"`
}

// PipelineConfig carries orchestrator defaults.
type PipelineConfig struct {
	TopK        int     `yaml:"top_k"`
	Threshold   float64 `yaml:"threshold"`
	ChunkChars  int     `yaml:"chunk_chars"`
	System      string  `yaml:"system"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// ResilienceConfig holds one dependency section per protected call.
type ResilienceConfig struct {
	Embedding  DependencyConfig `yaml:"embedding"`
	Search     DependencyConfig `yaml:"search"`
	Generation DependencyConfig `yaml:"generation"`
}

// DependencyConfig configures the breaker, retry, timeout, and
// optional bulkhead around one dependency.
type DependencyConfig struct {
	FailureThreshold int      `yaml:"failure_threshold"`
	ResetTimeout     Duration `yaml:"reset_timeout"`
	SuccessThreshold int      `yaml:"success_threshold"`
	MaxAttempts      int      `yaml:"max_attempts"`
	BaseDelay        Duration `yaml:"base_delay"`
	Timeout          Duration `yaml:"timeout"`
	// MaxConcurrent caps in-flight calls. Zero disables the bulkhead.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// RerankConfig configures the LLM-scored reranker.
type RerankConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Concurrency int      `yaml:"concurrency"`
	ItemTimeout Duration `yaml:"item_timeout"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig configures the tracing subsystem.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`
	SamplePct float64 `yaml:"sample_pct"`
}

// MetricsConfig configures the metrics subsystem.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
}

// AuthConfig configures caller authentication. Both sections empty
// means the system carries no authenticator and every request runs
// anonymous.
type AuthConfig struct {
	JWT     JWTConfig     `yaml:"jwt"`
	APIKeys []APIKeyEntry `yaml:"api_keys"`
}

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	Enabled bool `yaml:"enabled"`
	// Secret is the HMAC signing secret; may be a secret reference.
	Secret   string   `yaml:"secret"`
	Issuer   string   `yaml:"issuer"`
	Audience string   `yaml:"audience"`
	Methods  []string `yaml:"methods"`
}

// APIKeyEntry registers one API key.
type APIKeyEntry struct {
	// ID labels the key in identity claims. Defaults to its list
	// position.
	ID string `yaml:"id"`
	// Key is the plaintext key; may be a secret reference.
	Key       string `yaml:"key"`
	Principal string `yaml:"principal"`
	Tenant    string `yaml:"tenant"`
}

// SecretsConfig configures secret reference resolution.
type SecretsConfig struct {
	// FileDir mounts a file provider over this directory when set,
	// enabling secretref:file:<relative-path> references.
	FileDir string `yaml:"file_dir"`
}

// Default returns the configuration with every default applied.
func Default() Config {
	return Config{
		Service: ServiceConfig{Name: "ragops"},
		Store:   StoreConfig{Backend: "memory"},
		Cache: CacheConfig{
			Enabled:     true,
			EntryTTL:    Duration(time.Hour),
			TagTTLSlack: Duration(5 * time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 100,
			Window:      Duration(time.Minute),
		},
		Vector: VectorConfig{
			Backend:  "memory",
			Weaviate: WeaviateConfig{ClassName: "DocumentChunk"},
		},
		Pipeline: PipelineConfig{
			TopK:       5,
			Threshold:  0.5,
			ChunkChars: 2000,
		},
		Resilience: ResilienceConfig{
			Embedding: DependencyConfig{
				FailureThreshold: 5,
				ResetTimeout:     Duration(30 * time.Second),
				SuccessThreshold: 1,
				MaxAttempts:      3,
				BaseDelay:        Duration(100 * time.Millisecond),
				Timeout:          Duration(10 * time.Second),
			},
			Search: DependencyConfig{
				FailureThreshold: 5,
				ResetTimeout:     Duration(30 * time.Second),
				SuccessThreshold: 1,
				MaxAttempts:      3,
				BaseDelay:        Duration(100 * time.Millisecond),
				Timeout:          Duration(10 * time.Second),
			},
			Generation: DependencyConfig{
				FailureThreshold: 5,
				ResetTimeout:     Duration(30 * time.Second),
				SuccessThreshold: 1,
				MaxAttempts:      2,
				BaseDelay:        Duration(200 * time.Millisecond),
				Timeout:          Duration(60 * time.Second),
				MaxConcurrent:    8,
			},
		},
		Rerank: RerankConfig{
			Concurrency: 4,
			ItemTimeout: Duration(10 * time.Second),
		},
		Observe: ObserveConfig{
			Logging: LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// envOverrides maps RAGOPS_* environment variables onto config
// fields. Overrides apply after the file, before validation.
var envOverrides = []struct {
	key   string
	apply func(*Config, string)
}{
	{"RAGOPS_SERVICE_NAME", func(c *Config, v string) { c.Service.Name = v }},
	{"RAGOPS_STORE_BACKEND", func(c *Config, v string) { c.Store.Backend = v }},
	{"RAGOPS_REDIS_ADDR", func(c *Config, v string) { c.Store.Redis.Addr = v }},
	{"RAGOPS_REDIS_PASSWORD", func(c *Config, v string) { c.Store.Redis.Password = v }},
	{"RAGOPS_BADGER_DIR", func(c *Config, v string) { c.Store.Badger.Dir = v }},
	{"RAGOPS_LLM_API_KEY", func(c *Config, v string) { c.LLM.APIKey = v }},
	{"RAGOPS_LLM_BASE_URL", func(c *Config, v string) { c.LLM.BaseURL = v }},
	{"RAGOPS_VECTOR_BACKEND", func(c *Config, v string) { c.Vector.Backend = v }},
	{"RAGOPS_WEAVIATE_URL", func(c *Config, v string) { c.Vector.Weaviate.URL = v }},
	{"RAGOPS_LOG_LEVEL", func(c *Config, v string) { c.Observe.Logging.Level = v }},
}

// Parse unmarshals YAML over the defaults and applies environment
// overrides. Secret references stay unresolved; Build resolves them.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	applyEnv(&cfg)
	return &cfg, nil
}

// Load reads, parses, and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.key); ok {
			o.apply(cfg, v)
		}
	}
}

// Validate checks every section and returns the first failure, named
// by section.
func (c *Config) Validate() error {
	obsCfg := c.observeConfig()
	sections := []struct {
		name string
		fn   func() error
	}{
		{"service", c.Service.Validate},
		{"store", c.Store.Validate},
		{"cache", c.Cache.Validate},
		{"rate_limit", c.RateLimit.Validate},
		{"llm", c.LLM.Validate},
		{"vector", c.Vector.Validate},
		{"pipeline", c.Pipeline.Validate},
		{"resilience", c.Resilience.Validate},
		{"rerank", c.Rerank.Validate},
		{"observe", obsCfg.Validate},
		{"auth", c.Auth.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			return fmt.Errorf("config: %s: %w", s.name, err)
		}
	}
	return nil
}

// Validate checks the service section.
func (c ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// Validate checks the store section.
func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis backend requires addr")
		}
		return nil
	case "badger":
		if c.Badger.Dir == "" && !c.Badger.InMemory {
			return fmt.Errorf("badger backend requires dir or in_memory")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// Validate checks the cache section.
func (c CacheConfig) Validate() error {
	if c.EntryTTL < 0 {
		return fmt.Errorf("entry_ttl must not be negative")
	}
	if c.TagTTLSlack < 0 {
		return fmt.Errorf("tag_ttl_slack must not be negative")
	}
	return nil
}

// Validate checks the rate limit section.
func (c RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxRequests <= 0 {
		return fmt.Errorf("max_requests must be positive")
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	return nil
}

// Validate checks the llm section.
func (c LLMConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	return nil
}

// Validate checks the vector section.
func (c VectorConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "weaviate":
		if c.Weaviate.URL == "" {
			return fmt.Errorf("weaviate backend requires url")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// Validate checks the pipeline section.
func (c PipelineConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1]")
	}
	if c.ChunkChars <= 0 {
		return fmt.Errorf("chunk_chars must be positive")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	if c.Temperature < 0 {
		return fmt.Errorf("temperature must not be negative")
	}
	return nil
}

// Validate checks every dependency section.
func (c ResilienceConfig) Validate() error {
	deps := []struct {
		name string
		cfg  DependencyConfig
	}{
		{"embedding", c.Embedding},
		{"search", c.Search},
		{"generation", c.Generation},
	}
	for _, d := range deps {
		if err := d.cfg.Validate(); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	return nil
}

// Validate checks one dependency section.
func (c DependencyConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	if c.ResetTimeout <= 0 {
		return fmt.Errorf("reset_timeout must be positive")
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("success_threshold must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.MaxConcurrent < 0 {
		return fmt.Errorf("max_concurrent must not be negative")
	}
	return nil
}

// Validate checks the rerank section.
func (c RerankConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.ItemTimeout <= 0 {
		return fmt.Errorf("item_timeout must be positive")
	}
	return nil
}

// Validate checks the auth section.
func (c AuthConfig) Validate() error {
	if c.JWT.Enabled && c.JWT.Secret == "" {
		return fmt.Errorf("jwt requires secret")
	}
	for i, entry := range c.APIKeys {
		if entry.Key == "" {
			return fmt.Errorf("api_keys[%d]: key is required", i)
		}
		if entry.Principal == "" {
			return fmt.Errorf("api_keys[%d]: principal is required", i)
		}
	}
	return nil
}

// observeConfig maps the observe section onto observe.Config,
// carrying the service identity along.
func (c *Config) observeConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Service.Name,
		Version:     c.Service.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing.Enabled,
			Exporter:  c.Observe.Tracing.Exporter,
			SamplePct: c.Observe.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.Metrics.Enabled,
			Exporter: c.Observe.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: c.Observe.Logging.Enabled,
			Level:   c.Observe.Logging.Level,
		},
	}
}
