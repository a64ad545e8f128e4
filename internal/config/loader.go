package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides of config keys
const EnvPrefix = "REPO_INGEST"

// requiredKeys have no defaults; they must come from the file or env
var requiredKeys = []string{
	"pinecone.dimension",
	"pinecone.metric",
	"embedding.model",
}

// Load loads configuration from file, environment, and defaults.
// It uses the global viper instance so CLI flag bindings apply.
func Load(configFile string) (*Config, error) {
	return LoadFrom(viper.GetViper(), configFile)
}

// LoadFrom loads configuration into the given viper instance.
// configFile is used when it exists; otherwise config.yaml is searched
// for in the working directory and ConfigDir. A missing file is not an
// error, but the required keys must then be supplied some other way.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	if configFile != "" && fileExists(configFile) {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(ConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (REPO_INGEST_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range requiredKeys {
		// Unmarshal only sees env values for keys viper already knows
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// GetNested returns the value at a dot-separated key path of the loaded
// configuration, or def when the key is not set.
func GetNested(keyPath string, def any) any {
	v := viper.GetViper()
	if !v.IsSet(keyPath) {
		return def
	}
	return v.Get(keyPath)
}

// ConfigFileUsed returns the path of the config file that was read, if any
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

func setDefaults(v *viper.Viper) {
	d := Default()

	// Pinecone defaults
	v.SetDefault("pinecone.index_name", "")
	v.SetDefault("pinecone.cloud", d.Pinecone.Cloud)
	v.SetDefault("pinecone.region", d.Pinecone.Region)
	v.SetDefault("pinecone.batch_size", d.Pinecone.BatchSize)
	v.SetDefault("pinecone.metadata_limit", d.Pinecone.MetadataLimit)
	v.SetDefault("pinecone.ready_timeout", d.Pinecone.ReadyTimeout)
	v.SetDefault("pinecone.control_url", d.Pinecone.ControlURL)
	v.SetDefault("pinecone.api_version", d.Pinecone.APIVersion)
	v.SetDefault("pinecone.timeout", d.Pinecone.Timeout)

	// Embedding defaults
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.timeout", d.Embedding.Timeout)
	v.SetDefault("embedding.cache", false)

	// Firecrawl defaults
	v.SetDefault("firecrawl.enabled", d.Firecrawl.Enabled)
	v.SetDefault("firecrawl.backend", d.Firecrawl.Backend)
	v.SetDefault("firecrawl.base_url", d.Firecrawl.BaseURL)
	v.SetDefault("firecrawl.max_urls", d.Firecrawl.MaxURLs)
	v.SetDefault("firecrawl.max_retries", d.Firecrawl.MaxRetries)
	v.SetDefault("firecrawl.retry_wait", d.Firecrawl.RetryWait)
	v.SetDefault("firecrawl.chunk_size", d.Firecrawl.ChunkSize)
	v.SetDefault("firecrawl.chunk_overlap", 0)
	v.SetDefault("firecrawl.only_main_content", d.Firecrawl.OnlyMainContent)
	v.SetDefault("firecrawl.wait_for", d.Firecrawl.WaitFor)
	v.SetDefault("firecrawl.workers", d.Firecrawl.Workers)
	v.SetDefault("firecrawl.timeout", d.Firecrawl.Timeout)
	v.SetDefault("firecrawl.exclude", d.Firecrawl.Exclude)
	v.SetDefault("firecrawl.deep_research.enabled", false)
	v.SetDefault("firecrawl.deep_research.max_depth", d.Firecrawl.DeepResearch.MaxDepth)
	v.SetDefault("firecrawl.deep_research.max_urls", d.Firecrawl.DeepResearch.MaxURLs)
	v.SetDefault("firecrawl.deep_research.time_limit", d.Firecrawl.DeepResearch.TimeLimit)
	v.SetDefault("firecrawl.deep_research.max_topics", d.Firecrawl.DeepResearch.MaxTopics)
	v.SetDefault("firecrawl.deep_research.poll_interval", d.Firecrawl.DeepResearch.PollInterval)

	// Repository defaults
	v.SetDefault("repository.work_dir", "")
	v.SetDefault("repository.shallow", false)

	// Repomix defaults
	v.SetDefault("repomix.binary", d.Repomix.Binary)
	v.SetDefault("repomix.output_file", d.Repomix.OutputFile)
	v.SetDefault("repomix.timeout", d.Repomix.Timeout)

	// Validation defaults
	v.SetDefault("validation.sample_size", d.Validation.SampleSize)
	v.SetDefault("validation.success_threshold", d.Validation.SuccessThreshold)
	v.SetDefault("validation.top_k", d.Validation.TopK)
	v.SetDefault("validation.retry_top_k", d.Validation.RetryTopK)

	// Vector store defaults
	v.SetDefault("vector_store.backend", d.VectorStore.Backend)
	v.SetDefault("vector_store.path", d.VectorStore.Path)
	v.SetDefault("vector_store.compress", false)

	// Cache defaults
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.directory", d.Cache.Directory)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_minute", d.RateLimit.RequestsPerMinute)
	v.SetDefault("rate_limit.burst_size", d.RateLimit.BurstSize)
	v.SetDefault("rate_limit.max_retries", d.RateLimit.MaxRetries)
	v.SetDefault("rate_limit.initial_delay", d.RateLimit.InitialDelay)
	v.SetDefault("rate_limit.max_delay", d.RateLimit.MaxDelay)
	v.SetDefault("rate_limit.multiplier", d.RateLimit.Multiplier)
	v.SetDefault("rate_limit.circuit_breaker.enabled", d.RateLimit.CircuitBreaker.Enabled)
	v.SetDefault("rate_limit.circuit_breaker.failure_threshold", d.RateLimit.CircuitBreaker.FailureThreshold)
	v.SetDefault("rate_limit.circuit_breaker.success_threshold_half_open", d.RateLimit.CircuitBreaker.SuccessThresholdHalfOpen)
	v.SetDefault("rate_limit.circuit_breaker.reset_timeout", d.RateLimit.CircuitBreaker.ResetTimeout)

	// Stealth defaults
	v.SetDefault("stealth.user_agent", "")
	v.SetDefault("stealth.random_delay_min", d.Stealth.RandomDelayMin)
	v.SetDefault("stealth.random_delay_max", d.Stealth.RandomDelayMax)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", "")

	v.SetDefault("state.enabled", false)
	v.SetDefault("metrics.textfile", "")
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0o755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
