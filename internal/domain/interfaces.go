package domain

//go:generate mockgen -destination=../mocks/domain.go -package=mocks . VectorIndex,Embedder,Scraper

import (
	"context"
	"net/http"
	"time"
)

// Embedder turns text into dense vectors
type Embedder interface {
	// Name returns the model name
	Name() string
	// Dimension returns the vector length the model produces
	Dimension() int
	// Embed embeds a single text
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds several texts, preserving order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is a handle on one index in the vector database
type VectorIndex interface {
	// Upsert writes vectors into a namespace and returns the count written
	Upsert(ctx context.Context, namespace string, vectors []Vector) (int, error)
	// Query returns the topK closest vectors in a namespace. Match metadata
	// is only filled when includeMetadata is set.
	Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]Match, error)
	// Delete removes vectors by id from a namespace
	Delete(ctx context.Context, namespace string, ids []string) error
	// Stats describes the index contents
	Stats(ctx context.Context) (*IndexStats, error)
}

// IndexManager manages indexes in the vector database
type IndexManager interface {
	ListIndexes(ctx context.Context) ([]IndexDescription, error)
	CreateIndex(ctx context.Context, req CreateIndexRequest) error
	DescribeIndex(ctx context.Context, name string) (*IndexDescription, error)
	Index(ctx context.Context, name string) (VectorIndex, error)
	Close() error
}

// Scraper retrieves web content for enrichment
type Scraper interface {
	// Name returns the backend name
	Name() string
	// Search runs a web search and returns results with their descriptions
	Search(ctx context.Context, query string, limit int) ([]WebResult, error)
	// Scrape fetches one URL as Markdown
	Scrape(ctx context.Context, url string, opts ScrapeOptions) (*WebResult, error)
	// DeepResearch runs a multi-step research job on a query
	DeepResearch(ctx context.Context, query string, opts ResearchOptions) (*ResearchResult, error)
}

// Fetcher defines the interface for HTTP fetching with stealth capabilities
type Fetcher interface {
	// Get fetches content from a URL
	Get(ctx context.Context, url string) (*Response, error)
	// Transport returns an http.RoundTripper for integration with colly
	Transport() http.RoundTripper
	// Close releases resources
	Close() error
}

// Cache defines the interface for content caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Has checks if a key exists in cache
	Has(ctx context.Context, key string) bool
	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error
	// Close releases cache resources
	Close() error
}
