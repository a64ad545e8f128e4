package domain

import (
	"net/http"
	"time"
)

// Source types recorded on chunks and vector metadata
const (
	SourceRepository    = "repository"
	SourceError         = "error"
	SourceWeb           = "web"
	SourceWebSearch     = "web_search"
	SourceWebSearchMock = "web_search_mock"
	SourceDeepResearch  = "deep_research"
	SourceUnknown       = "unknown"
)

// Chunk is a unit of extracted text paired with its origin
type Chunk struct {
	Text       string            `json:"text"`
	SourceType string            `json:"source_type"`
	FilePath   string            `json:"file_path,omitempty"`
	URL        string            `json:"url,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Clone returns a copy of the chunk with its own metadata map
func (c Chunk) Clone() Chunk {
	out := c
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// EmbeddedChunk is a chunk with its embedding attached
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"-"`
}

// Vector is a record ready for upsert
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is a scored query result
type Match struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// StringField returns a metadata value when it is a string
func (m Match) StringField(key string) string {
	if v, ok := m.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// IndexDescription describes a vector index
type IndexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host,omitempty"`
	Ready     bool   `json:"ready"`
}

// IndexStats summarises the contents of an index
type IndexStats struct {
	Dimension        int            `json:"dimension"`
	TotalVectorCount int            `json:"total_vector_count"`
	Namespaces       map[string]int `json:"namespaces"`
}

// CreateIndexRequest holds the parameters for a new serverless index
type CreateIndexRequest struct {
	Name      string
	Dimension int
	Metric    string
	Cloud     string
	Region    string
}

// UpsertResult reports how many vectors were written
type UpsertResult struct {
	TotalUpserted int `json:"total_upserted"`
}

// WebResult is a search hit or scraped page
type WebResult struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content,omitempty"` // Markdown
	HTML       string `json:"html,omitempty"`
	SourceType string `json:"source_type,omitempty"`
}

// ScrapeOptions controls a single scrape request
type ScrapeOptions struct {
	Formats         []string
	OnlyMainContent bool
	WaitFor         time.Duration
}

// DefaultScrapeOptions returns the scrape defaults used by the pipeline
func DefaultScrapeOptions() ScrapeOptions {
	return ScrapeOptions{
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		WaitFor:         time.Second,
	}
}

// ResearchOptions controls a deep research job
type ResearchOptions struct {
	MaxDepth     int
	MaxURLs      int
	TimeLimit    time.Duration
	PollInterval time.Duration
}

// ResearchResult is the outcome of researching one topic
type ResearchResult struct {
	Topic         string      `json:"topic"`
	FinalAnalysis string      `json:"final_analysis,omitempty"`
	Sources       []WebResult `json:"sources,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// Failed reports whether the research produced an error
func (r *ResearchResult) Failed() bool {
	return r.Error != ""
}

// PathResult is the validation outcome for one sampled file path
type PathResult struct {
	FilePath   string  `json:"file_path" yaml:"file_path"`
	Found      bool    `json:"found" yaml:"found"`
	MatchField string  `json:"match_field,omitempty" yaml:"match_field,omitempty"`
	MatchValue string  `json:"match_value,omitempty" yaml:"match_value,omitempty"`
	Score      float32 `json:"score,omitempty" yaml:"score,omitempty"`
	Error      string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// ValidationReport summarises a validation run
type ValidationReport struct {
	Success     bool         `json:"success" yaml:"success"`
	SuccessRate float64      `json:"success_rate" yaml:"success_rate"`
	FoundCount  int          `json:"found_count" yaml:"found_count"`
	TotalCount  int          `json:"total_count" yaml:"total_count"`
	Results     []PathResult `json:"results,omitempty" yaml:"results,omitempty"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`
}

// RepoInfo describes a cloned or updated repository
type RepoInfo struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Path   string `json:"path"`
	Branch string `json:"branch,omitempty"`
	Commit string `json:"commit,omitempty"`
}

// IngestResult is the summary returned by a pipeline run
type IngestResult struct {
	Repository               string            `json:"repository" yaml:"repository"`
	IndexName                string            `json:"index_name" yaml:"index_name"`
	Namespace                string            `json:"namespace" yaml:"namespace"`
	Commit                   string            `json:"commit,omitempty" yaml:"commit,omitempty"`
	RepoChunks               int               `json:"repo_chunks" yaml:"repo_chunks"`
	RepoVectorsUpserted      int               `json:"repo_vectors_upserted" yaml:"repo_vectors_upserted"`
	SkippedUnchanged         int               `json:"skipped_unchanged,omitempty" yaml:"skipped_unchanged,omitempty"`
	FirecrawlEnabled         bool              `json:"firecrawl_enabled" yaml:"firecrawl_enabled"`
	URLsExtracted            int               `json:"urls_extracted" yaml:"urls_extracted"`
	FirecrawlChunks          int               `json:"firecrawl_chunks" yaml:"firecrawl_chunks"`
	FirecrawlVectorsUpserted int               `json:"firecrawl_vectors_upserted" yaml:"firecrawl_vectors_upserted"`
	DeepResearchEnabled      bool              `json:"deep_research_enabled" yaml:"deep_research_enabled"`
	DeepResearchTopics       int               `json:"deep_research_topics" yaml:"deep_research_topics"`
	EnrichedVectorsUpserted  int               `json:"enriched_vectors_upserted,omitempty" yaml:"enriched_vectors_upserted,omitempty"`
	TotalVectorsUpserted     int               `json:"total_vectors_upserted" yaml:"total_vectors_upserted"`
	Validation               *ValidationReport `json:"validation_results,omitempty" yaml:"validation_results,omitempty"`
	Duration                 time.Duration     `json:"duration" yaml:"duration"`
}

// Response represents an HTTP response from the page fetcher
type Response struct {
	StatusCode  int
	Body        []byte
	Headers     http.Header
	ContentType string
	URL         string
	FromCache   bool
}

// Page is a scraped web page converted to Markdown
type Page struct {
	URL         string
	Title       string
	Description string
	Markdown    string
	ContentHash string
	FetchedAt   time.Time
}
