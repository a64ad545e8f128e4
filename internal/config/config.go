package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Pinecone    PineconeConfig    `mapstructure:"pinecone" yaml:"pinecone"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	Firecrawl   FirecrawlConfig   `mapstructure:"firecrawl" yaml:"firecrawl"`
	Repository  RepositoryConfig  `mapstructure:"repository" yaml:"repository"`
	Repomix     RepomixConfig     `mapstructure:"repomix" yaml:"repomix"`
	Validation  ValidationConfig  `mapstructure:"validation" yaml:"validation"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store" yaml:"vector_store"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit" yaml:"rate_limit"`
	Stealth     StealthConfig     `mapstructure:"stealth" yaml:"stealth"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	State       StateConfig       `mapstructure:"state" yaml:"state"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// PineconeConfig contains index settings
type PineconeConfig struct {
	IndexName     string        `mapstructure:"index_name" yaml:"index_name"`
	Dimension     int           `mapstructure:"dimension" yaml:"dimension"`
	Metric        string        `mapstructure:"metric" yaml:"metric"`
	Cloud         string        `mapstructure:"cloud" yaml:"cloud"`
	Region        string        `mapstructure:"region" yaml:"region"`
	BatchSize     int           `mapstructure:"batch_size" yaml:"batch_size"`
	MetadataLimit int           `mapstructure:"metadata_limit" yaml:"metadata_limit"`
	ReadyTimeout  time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
	ControlURL    string        `mapstructure:"control_url" yaml:"control_url"`
	APIVersion    string        `mapstructure:"api_version" yaml:"api_version"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// EmbeddingConfig contains embedding model settings
type EmbeddingConfig struct {
	Model     string        `mapstructure:"model" yaml:"model"`
	Provider  string        `mapstructure:"provider" yaml:"provider"`
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	BatchSize int           `mapstructure:"batch_size" yaml:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Cache     bool          `mapstructure:"cache" yaml:"cache"`
}

// FirecrawlConfig contains web scraping settings
type FirecrawlConfig struct {
	Enabled         bool               `mapstructure:"enabled" yaml:"enabled"`
	Backend         string             `mapstructure:"backend" yaml:"backend"`
	BaseURL         string             `mapstructure:"base_url" yaml:"base_url"`
	MaxURLs         int                `mapstructure:"max_urls" yaml:"max_urls"`
	MaxRetries      int                `mapstructure:"max_retries" yaml:"max_retries"`
	RetryWait       time.Duration      `mapstructure:"retry_wait" yaml:"retry_wait"`
	ChunkSize       int                `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap    int                `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
	OnlyMainContent bool               `mapstructure:"only_main_content" yaml:"only_main_content"`
	WaitFor         time.Duration      `mapstructure:"wait_for" yaml:"wait_for"`
	Workers         int                `mapstructure:"workers" yaml:"workers"`
	Timeout         time.Duration      `mapstructure:"timeout" yaml:"timeout"`
	Exclude         []string           `mapstructure:"exclude" yaml:"exclude"`
	DeepResearch    DeepResearchConfig `mapstructure:"deep_research" yaml:"deep_research"`
}

// DeepResearchConfig contains deep research settings
type DeepResearchConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxDepth     int           `mapstructure:"max_depth" yaml:"max_depth"`
	MaxURLs      int           `mapstructure:"max_urls" yaml:"max_urls"`
	TimeLimit    time.Duration `mapstructure:"time_limit" yaml:"time_limit"`
	MaxTopics    int           `mapstructure:"max_topics" yaml:"max_topics"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// RepositoryConfig contains clone settings
type RepositoryConfig struct {
	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`
	Shallow bool   `mapstructure:"shallow" yaml:"shallow"`
}

// RepomixConfig contains repomix invocation settings
type RepomixConfig struct {
	Binary     string        `mapstructure:"binary" yaml:"binary"`
	OutputFile string        `mapstructure:"output_file" yaml:"output_file"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ValidationConfig contains post-ingestion validation settings
type ValidationConfig struct {
	SampleSize       int     `mapstructure:"sample_size" yaml:"sample_size"`
	SuccessThreshold float64 `mapstructure:"success_threshold" yaml:"success_threshold"`
	TopK             int     `mapstructure:"top_k" yaml:"top_k"`
	RetryTopK        int     `mapstructure:"retry_top_k" yaml:"retry_top_k"`
}

// VectorStoreConfig selects the vector database backend
type VectorStoreConfig struct {
	Backend  string `mapstructure:"backend" yaml:"backend"`
	Path     string `mapstructure:"path" yaml:"path"`
	Compress bool   `mapstructure:"compress" yaml:"compress"`
}

// CacheConfig contains cache settings
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Directory string        `mapstructure:"directory" yaml:"directory"`
}

// RateLimitConfig contains rate limiting settings for remote API requests
type RateLimitConfig struct {
	Enabled           bool                 `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int                  `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	BurstSize         int                  `mapstructure:"burst_size" yaml:"burst_size"`
	MaxRetries        int                  `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay      time.Duration        `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay          time.Duration        `mapstructure:"max_delay" yaml:"max_delay"`
	Multiplier        float64              `mapstructure:"multiplier" yaml:"multiplier"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig contains circuit breaker settings
type CircuitBreakerConfig struct {
	Enabled                  bool          `mapstructure:"enabled" yaml:"enabled"`
	FailureThreshold         int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	SuccessThresholdHalfOpen int           `mapstructure:"success_threshold_half_open" yaml:"success_threshold_half_open"`
	ResetTimeout             time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
}

// StealthConfig contains settings for the local scrape fetcher
type StealthConfig struct {
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	RandomDelayMin time.Duration `mapstructure:"random_delay_min" yaml:"random_delay_min"`
	RandomDelayMax time.Duration `mapstructure:"random_delay_max" yaml:"random_delay_max"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// StateConfig controls incremental ingestion
type StateConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// MetricsConfig controls the Prometheus textfile export
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

var validMetrics = map[string]bool{
	"cosine":     true,
	"dotproduct": true,
	"euclidean":  true,
}

// Validate checks the required keys and replaces out-of-range optional
// values with their defaults.
func (c *Config) Validate() error {
	var missing []string
	if c.Pinecone.Dimension <= 0 {
		missing = append(missing, "pinecone.dimension")
	}
	if c.Pinecone.Metric == "" {
		missing = append(missing, "pinecone.metric")
	}
	if strings.TrimSpace(c.Embedding.Model) == "" {
		missing = append(missing, "embedding.model")
	}
	if len(missing) > 0 {
		return domain.NewValidationError(strings.Join(missing, ", "), "missing required configuration keys")
	}

	c.Pinecone.Metric = strings.ToLower(c.Pinecone.Metric)
	if !validMetrics[c.Pinecone.Metric] {
		return domain.NewValidationError("pinecone.metric",
			fmt.Sprintf("must be one of cosine, dotproduct, euclidean (got %q)", c.Pinecone.Metric))
	}

	switch c.VectorStore.Backend {
	case "", BackendPinecone, BackendLocal:
	default:
		return domain.NewValidationError("vector_store.backend", fmt.Sprintf("unknown backend %q", c.VectorStore.Backend))
	}
	switch c.Firecrawl.Backend {
	case "", ScrapeBackendFirecrawl, ScrapeBackendLocal:
	default:
		return domain.NewValidationError("firecrawl.backend", fmt.Sprintf("unknown backend %q", c.Firecrawl.Backend))
	}

	if c.Pinecone.BatchSize < 1 {
		c.Pinecone.BatchSize = DefaultBatchSize
	}
	if c.Pinecone.MetadataLimit < 1024 {
		c.Pinecone.MetadataLimit = DefaultMetadataLimit
	}
	if c.Pinecone.ReadyTimeout < time.Second {
		c.Pinecone.ReadyTimeout = DefaultReadyTimeout
	}
	if c.Embedding.BatchSize < 1 {
		c.Embedding.BatchSize = DefaultEmbeddingBatchSize
	}
	if c.Firecrawl.MaxRetries < 1 {
		c.Firecrawl.MaxRetries = DefaultScrapeRetries
	}
	if c.Firecrawl.Workers < 1 {
		c.Firecrawl.Workers = 1
	}
	if c.Firecrawl.ChunkOverlap < 0 || (c.Firecrawl.ChunkSize > 0 && c.Firecrawl.ChunkOverlap >= c.Firecrawl.ChunkSize) {
		c.Firecrawl.ChunkOverlap = 0
	}
	if c.Firecrawl.DeepResearch.MaxTopics < 1 {
		c.Firecrawl.DeepResearch.MaxTopics = DefaultMaxTopics
	}
	if c.Validation.SampleSize < 1 {
		c.Validation.SampleSize = DefaultSampleSize
	}
	if c.Validation.SuccessThreshold <= 0 || c.Validation.SuccessThreshold > 1 {
		c.Validation.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.Validation.TopK < 1 {
		c.Validation.TopK = DefaultValidationTopK
	}
	if c.Validation.RetryTopK < c.Validation.TopK {
		c.Validation.RetryTopK = DefaultValidationRetryTopK
	}
	if c.Cache.TTL < time.Minute {
		c.Cache.TTL = DefaultCacheTTL
	}
	return nil
}

// UseLocalVectorStore reports whether vectors go to the embedded store
func (c *Config) UseLocalVectorStore() bool {
	return c.VectorStore.Backend == BackendLocal
}
