package app

import (
	"context"
	"fmt"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/cache"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/config"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/embedding"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/fetcher"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/firecrawl"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/git"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/metrics"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/repomix"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/resilience"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/state"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/vectorstore"
)

// RepoSyncer clones a repository or updates an existing checkout
type RepoSyncer interface {
	CloneOrUpdate(ctx context.Context, repoURL, targetDir string) (*domain.RepoInfo, error)
}

// Packer packs a checkout into a single repomix output file
type Packer interface {
	Execute(ctx context.Context, repoPath, outputFile string) (string, error)
}

// DependencyOptions contains options for building Dependencies. The
// interface fields replace the configured implementations when set.
type DependencyOptions struct {
	Config   *config.Config
	Env      config.Env
	MockMode bool
	Logger   *utils.Logger
	Metrics  *metrics.Metrics
	Progress bool

	Repos        RepoSyncer
	Packer       Packer
	Embedder     domain.Embedder
	IndexManager domain.IndexManager
	Scraper      domain.Scraper
}

// Dependencies holds the services shared by pipeline runs. Remote
// clients are built on first use so a run that never scrapes needs no
// Firecrawl key.
type Dependencies struct {
	Config   *config.Config
	Env      config.Env
	Mock     bool
	Logger   *utils.Logger
	Metrics  *metrics.Metrics
	Cache    domain.Cache
	Repos    RepoSyncer
	Packer   Packer
	Parser   *repomix.Parser
	Progress bool

	embedder domain.Embedder
	indexes  domain.IndexManager
	scraper  domain.Scraper
	fetcher  *fetcher.Client
}

// NewDependencies creates the shared services for a configuration
func NewDependencies(opts DependencyOptions) (*Dependencies, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	d := &Dependencies{
		Config:   cfg,
		Env:      opts.Env,
		Mock:     opts.MockMode || opts.Env.IsMock(),
		Logger:   logger,
		Metrics:  m,
		Repos:    opts.Repos,
		Packer:   opts.Packer,
		Parser:   repomix.NewParser(logger),
		Progress: opts.Progress,
		embedder: opts.Embedder,
		indexes:  opts.IndexManager,
		scraper:  opts.Scraper,
	}

	if cfg.Cache.Enabled {
		bc, err := cache.NewBadgerCache(cache.BadgerOptions{
			Dir: utils.ExpandPath(cfg.Cache.Directory),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		c, err := cache.NewCompressedCache(bc)
		if err != nil {
			bc.Close()
			return nil, err
		}
		d.Cache = c
	}

	if d.Repos == nil {
		d.Repos = git.NewManager(git.ManagerOptions{
			WorkDir: cfg.Repository.WorkDir,
			Shallow: cfg.Repository.Shallow,
			Token:   opts.Env.GitHubToken,
			Logger:  logger,
		})
	}
	if d.Packer == nil {
		d.Packer = repomix.NewRunner(repomix.RunnerOptions{
			Binary:  cfg.Repomix.Binary,
			Timeout: cfg.Repomix.Timeout,
			Ignore:  []string{state.StateFileName},
			Logger:  logger,
		})
	}

	if d.Mock {
		logger.Info().Msg("Mock mode enabled: using in-memory vector store and mock scraper")
	}
	return d, nil
}

// guard builds the rate limit, retry and circuit breaker wrapper for a
// remote service from the rate_limit section.
func (d *Dependencies) guard(service string) *resilience.Guard {
	rl := d.Config.RateLimit
	opts := resilience.Options{
		Retry: resilience.RetryOptions{
			MaxRetries:      rl.MaxRetries,
			InitialInterval: rl.InitialDelay,
			MaxInterval:     rl.MaxDelay,
			Multiplier:      rl.Multiplier,
		},
		BreakerEnabled: rl.CircuitBreaker.Enabled,
		Breaker: resilience.BreakerConfig{
			FailureThreshold:         rl.CircuitBreaker.FailureThreshold,
			SuccessThresholdHalfOpen: rl.CircuitBreaker.SuccessThresholdHalfOpen,
			ResetTimeout:             rl.CircuitBreaker.ResetTimeout,
		},
	}
	if rl.Enabled {
		opts.RequestsPerMinute = rl.RequestsPerMinute
		opts.BurstSize = rl.BurstSize
	}
	return resilience.NewGuard(service, opts, d.Logger)
}

func (d *Dependencies) providerConfig() embedding.ProviderConfig {
	cfg := d.Config
	return embedding.ProviderConfig{
		Model:      cfg.Embedding.Model,
		Provider:   cfg.Embedding.Provider,
		APIKey:     d.Env.EmbeddingKey(),
		BaseURL:    cfg.Embedding.BaseURL,
		APIVersion: cfg.Pinecone.APIVersion,
		Dimension:  cfg.Pinecone.Dimension,
		Timeout:    cfg.Embedding.Timeout,
		Guard:      d.guard("embedding"),
		Logger:     d.Logger,
	}
}

// Embedder returns the passage embedder, wrapped in the embedding cache
// when both are enabled.
func (d *Dependencies) Embedder() (domain.Embedder, error) {
	if d.embedder != nil {
		return d.embedder, nil
	}
	e, err := embedding.NewProvider(d.providerConfig())
	if err != nil {
		return nil, err
	}
	if d.Config.Embedding.Cache && d.Cache != nil {
		e = embedding.NewCachedEmbedder(e, d.Cache, d.Config.Cache.TTL)
	}
	d.embedder = e
	return e, nil
}

// QueryEmbedder returns an embedder for search queries. Pinecone hosted
// models embed queries with a different input type than passages.
func (d *Dependencies) QueryEmbedder() (domain.Embedder, error) {
	if d.embedder != nil {
		return d.embedder, nil
	}
	e, err := embedding.NewProvider(d.providerConfig())
	if err != nil {
		return nil, err
	}
	if p, ok := e.(*embedding.PineconeProvider); ok {
		return p.ForQueries(), nil
	}
	return e, nil
}

// IndexManager returns the vector database client for this run
func (d *Dependencies) IndexManager() (domain.IndexManager, error) {
	if d.indexes != nil {
		return d.indexes, nil
	}
	cfg := d.Config

	var (
		mgr domain.IndexManager
		err error
	)
	switch {
	case d.Mock:
		d.Logger.Info().Msg("Using mock Pinecone client for testing")
		mgr = vectorstore.NewMemoryStore(d.Logger)
	case cfg.UseLocalVectorStore():
		mgr, err = vectorstore.NewPersistentStore(cfg.VectorStore.Path, cfg.VectorStore.Compress, d.Logger)
	default:
		mgr, err = vectorstore.NewPineconeManager(vectorstore.PineconeOptions{
			APIKey:     d.Env.PineconeAPIKey,
			ControlURL: cfg.Pinecone.ControlURL,
			APIVersion: cfg.Pinecone.APIVersion,
			Timeout:    cfg.Pinecone.Timeout,
			Guard:      d.guard("pinecone"),
			Logger:     d.Logger,
		})
	}
	if err != nil {
		return nil, err
	}
	d.indexes = mgr
	return mgr, nil
}

// Scraper returns the web content backend: the mock in mock mode, the
// local colly scraper for the local backend, otherwise Firecrawl.
func (d *Dependencies) Scraper() (domain.Scraper, error) {
	if d.scraper != nil {
		return d.scraper, nil
	}
	cfg := d.Config

	switch {
	case d.Mock:
		d.scraper = firecrawl.MockScraper{}
	case cfg.Firecrawl.Backend == config.ScrapeBackendLocal:
		f, err := d.pageFetcher()
		if err != nil {
			return nil, err
		}
		d.scraper = firecrawl.NewLocalScraper(f, d.Logger)
	default:
		c, err := firecrawl.NewClient(firecrawl.Options{
			APIKey:       d.Env.FirecrawlAPIKey,
			BaseURL:      cfg.Firecrawl.BaseURL,
			Timeout:      cfg.Firecrawl.Timeout,
			PollInterval: cfg.Firecrawl.DeepResearch.PollInterval,
			Guard:        d.guard("firecrawl"),
			Logger:       d.Logger,
		})
		if err != nil {
			return nil, err
		}
		d.scraper = c
	}
	d.Logger.Info().Str("backend", d.scraper.Name()).Msg("Initialized scraper")
	return d.scraper, nil
}

func (d *Dependencies) pageFetcher() (*fetcher.Client, error) {
	if d.fetcher != nil {
		return d.fetcher, nil
	}
	cfg := d.Config

	opts := fetcher.DefaultClientOptions()
	if cfg.Firecrawl.Timeout > 0 {
		opts.Timeout = cfg.Firecrawl.Timeout
	}
	opts.MaxRetries = cfg.RateLimit.MaxRetries
	opts.Cache = d.Cache
	opts.CacheTTL = cfg.Cache.TTL
	opts.UserAgent = cfg.Stealth.UserAgent
	opts.RandomDelayMin = cfg.Stealth.RandomDelayMin
	opts.RandomDelayMax = cfg.Stealth.RandomDelayMax
	opts.Logger = d.Logger
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute > 0 {
		opts.Limiter = resilience.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	}

	f, err := fetcher.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}
	d.fetcher = f
	return f, nil
}

// Close releases every client that was opened
func (d *Dependencies) Close() error {
	if d.fetcher != nil {
		d.fetcher.Close()
	}
	if d.indexes != nil {
		d.indexes.Close()
	}
	if d.Cache != nil {
		d.Cache.Close()
	}
	return nil
}
