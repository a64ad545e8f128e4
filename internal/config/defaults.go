package config

import (
	"os"
	"path/filepath"
	"time"
)

// Backend names
const (
	BackendPinecone = "pinecone"
	BackendLocal    = "local"

	ScrapeBackendFirecrawl = "firecrawl"
	ScrapeBackendLocal     = "local"
)

// Default values
const (
	// Pinecone defaults
	DefaultCloud           = "aws"
	DefaultRegion          = "us-east-1"
	DefaultBatchSize       = 100
	DefaultMetadataLimit   = 40 * 1024
	DefaultReadyTimeout    = 2 * time.Minute
	DefaultControlURL      = "https://api.pinecone.io"
	DefaultAPIVersion      = "2025-01"
	DefaultPineconeTimeout = 60 * time.Second

	// Embedding defaults
	DefaultEmbeddingProvider  = "auto"
	DefaultEmbeddingBatchSize = 32
	DefaultEmbeddingTimeout   = 60 * time.Second

	// Firecrawl defaults
	DefaultFirecrawlURL      = "https://api.firecrawl.dev/v1"
	DefaultMaxURLs           = 20
	DefaultScrapeRetries     = 3
	DefaultRetryWait         = time.Second
	DefaultChunkSize         = 500
	DefaultWaitFor           = time.Second
	DefaultScrapeTimeout     = 60 * time.Second
	DefaultResearchDepth     = 3
	DefaultResearchURLs      = 10
	DefaultResearchTimeLimit = 180 * time.Second
	DefaultMaxTopics         = 5
	DefaultPollInterval      = 5 * time.Second

	// Repomix defaults
	DefaultRepomixBinary  = "repomix"
	DefaultRepomixOutput  = "repomix-output.xml"
	DefaultRepomixTimeout = 10 * time.Minute

	// Validation defaults
	DefaultSampleSize          = 5
	DefaultSuccessThreshold    = 0.6
	DefaultValidationTopK      = 50
	DefaultValidationRetryTopK = 100

	// Cache defaults
	DefaultCacheEnabled = true
	DefaultCacheTTL     = 24 * time.Hour

	// Rate limit defaults
	DefaultRequestsPerMinute = 120
	DefaultBurstSize         = 10
	DefaultMaxRetries        = 3
	DefaultInitialDelay      = time.Second
	DefaultMaxDelay          = 30 * time.Second
	DefaultMultiplier        = 2.0
	DefaultFailureThreshold  = 5
	DefaultSuccessHalfOpen   = 1
	DefaultResetTimeout      = 30 * time.Second

	// Stealth defaults
	DefaultRandomDelayMin = 500 * time.Millisecond
	DefaultRandomDelayMax = 2 * time.Second

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"
)

// DefaultExcludePatterns lists hosts, subdomains included, that are never scraped
var DefaultExcludePatterns = []string{
	"localhost",
	"127.0.0.1",
	"example.com",
	"shields.io",
}

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".repo-ingest"
	}
	return filepath.Join(home, ".repo-ingest")
}

// CacheDir returns the cache directory path
func CacheDir() string {
	return filepath.Join(ConfigDir(), "cache")
}

// VectorDir returns the local vector store directory path
func VectorDir() string {
	return filepath.Join(ConfigDir(), "vectors")
}

// Default returns the default configuration, including values for the
// keys a config file must otherwise provide.
func Default() *Config {
	return &Config{
		Pinecone: PineconeConfig{
			Dimension:     1024,
			Metric:        "cosine",
			Cloud:         DefaultCloud,
			Region:        DefaultRegion,
			BatchSize:     DefaultBatchSize,
			MetadataLimit: DefaultMetadataLimit,
			ReadyTimeout:  DefaultReadyTimeout,
			ControlURL:    DefaultControlURL,
			APIVersion:    DefaultAPIVersion,
			Timeout:       DefaultPineconeTimeout,
		},
		Embedding: EmbeddingConfig{
			Model:     "multilingual-e5-large",
			Provider:  DefaultEmbeddingProvider,
			BatchSize: DefaultEmbeddingBatchSize,
			Timeout:   DefaultEmbeddingTimeout,
		},
		Firecrawl: FirecrawlConfig{
			Enabled:         true,
			Backend:         ScrapeBackendFirecrawl,
			BaseURL:         DefaultFirecrawlURL,
			MaxURLs:         DefaultMaxURLs,
			MaxRetries:      DefaultScrapeRetries,
			RetryWait:       DefaultRetryWait,
			ChunkSize:       DefaultChunkSize,
			OnlyMainContent: true,
			WaitFor:         DefaultWaitFor,
			Workers:         1,
			Timeout:         DefaultScrapeTimeout,
			Exclude:         DefaultExcludePatterns,
			DeepResearch: DeepResearchConfig{
				MaxDepth:     DefaultResearchDepth,
				MaxURLs:      DefaultResearchURLs,
				TimeLimit:    DefaultResearchTimeLimit,
				MaxTopics:    DefaultMaxTopics,
				PollInterval: DefaultPollInterval,
			},
		},
		Repomix: RepomixConfig{
			Binary:     DefaultRepomixBinary,
			OutputFile: DefaultRepomixOutput,
			Timeout:    DefaultRepomixTimeout,
		},
		Validation: ValidationConfig{
			SampleSize:       DefaultSampleSize,
			SuccessThreshold: DefaultSuccessThreshold,
			TopK:             DefaultValidationTopK,
			RetryTopK:        DefaultValidationRetryTopK,
		},
		VectorStore: VectorStoreConfig{
			Backend: BackendPinecone,
			Path:    VectorDir(),
		},
		Cache: CacheConfig{
			Enabled:   DefaultCacheEnabled,
			TTL:       DefaultCacheTTL,
			Directory: CacheDir(),
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: DefaultRequestsPerMinute,
			BurstSize:         DefaultBurstSize,
			MaxRetries:        DefaultMaxRetries,
			InitialDelay:      DefaultInitialDelay,
			MaxDelay:          DefaultMaxDelay,
			Multiplier:        DefaultMultiplier,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:                  true,
				FailureThreshold:         DefaultFailureThreshold,
				SuccessThresholdHalfOpen: DefaultSuccessHalfOpen,
				ResetTimeout:             DefaultResetTimeout,
			},
		},
		Stealth: StealthConfig{
			RandomDelayMin: DefaultRandomDelayMin,
			RandomDelayMax: DefaultRandomDelayMax,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
