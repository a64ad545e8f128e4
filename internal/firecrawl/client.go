// Package firecrawl retrieves web content used to enrich repository
// vectors: search results, scraped pages and deep research analyses.
package firecrawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/httpapi"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/resilience"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// DefaultBaseURL is the hosted Firecrawl v1 API
const DefaultBaseURL = "https://api.firecrawl.dev/v1"

const service = "firecrawl"

var _ domain.Scraper = (*Client)(nil)

// Options configures the Firecrawl REST client
type Options struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	PollInterval time.Duration
	HTTPClient   *http.Client
	Guard        *resilience.Guard
	Logger       *utils.Logger
}

// Client talks to the Firecrawl REST API
type Client struct {
	api          *httpapi.Client
	pollInterval time.Duration
	logger       *utils.Logger
}

// NewClient creates a Firecrawl client. An API key is required.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("firecrawl: %w", domain.ErrMissingAPIKey)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	guard := opts.Guard
	if guard == nil {
		guard = resilience.NewGuard(service, resilience.DefaultOptions(), opts.Logger)
	}

	return &Client{
		api: httpapi.New(httpapi.Options{
			Service:    service,
			BaseURL:    opts.BaseURL,
			Headers:    map[string]string{"Authorization": "Bearer " + opts.APIKey},
			Timeout:    opts.Timeout,
			HTTPClient: opts.HTTPClient,
			Guard:      guard,
		}),
		pollInterval: opts.PollInterval,
		logger:       opts.Logger.WithComponent("firecrawl"),
	}, nil
}

// Name returns the backend name
func (c *Client) Name() string {
	return "firecrawl"
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// failed turns a success=false body into an APIError
func (e envelope) failed(what string) error {
	if e.Success != nil && !*e.Success {
		msg := e.Error
		if msg == "" {
			msg = what + " was not successful"
		}
		return domain.NewAPIError(service, http.StatusOK, msg, nil)
	}
	return nil
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	envelope
	Data []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Markdown    string `json:"markdown"`
	} `json:"data"`
}

// Search runs a web search. Each result's content is its description,
// or the scraped markdown when the API returns one.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.WebResult, error) {
	c.logger.Info().Str("query", query).Int("limit", limit).Msg("Searching web content")

	var resp searchResponse
	if err := c.api.Do(ctx, http.MethodPost, "/search", searchRequest{Query: query, Limit: limit}, &resp); err != nil {
		return nil, fmt.Errorf("firecrawl search: %w", err)
	}
	if err := resp.failed("search"); err != nil {
		return nil, err
	}

	results := make([]domain.WebResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		content := d.Description
		if content == "" {
			content = d.Markdown
		}
		results = append(results, domain.WebResult{
			URL:        d.URL,
			Title:      d.Title,
			Content:    content,
			SourceType: domain.SourceWebSearch,
		})
	}
	c.logger.Info().Int("results", len(results)).Msg("Search completed")
	return results, nil
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int64    `json:"waitFor,omitempty"`
}

type scrapeResponse struct {
	envelope
	Data struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
		Metadata struct {
			Title     string `json:"title"`
			SourceURL string `json:"sourceURL"`
		} `json:"metadata"`
	} `json:"data"`
}

// Scrape fetches one URL as Markdown
func (c *Client) Scrape(ctx context.Context, target string, opts domain.ScrapeOptions) (*domain.WebResult, error) {
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{"markdown"}
	}

	var resp scrapeResponse
	req := scrapeRequest{
		URL:             target,
		Formats:         formats,
		OnlyMainContent: opts.OnlyMainContent,
		WaitFor:         opts.WaitFor.Milliseconds(),
	}
	if err := c.api.Do(ctx, http.MethodPost, "/scrape", req, &resp); err != nil {
		return nil, fmt.Errorf("firecrawl scrape %s: %w", target, err)
	}
	if err := resp.failed("scrape"); err != nil {
		return nil, err
	}

	content := resp.Data.Markdown
	if content == "" {
		content = resp.Data.HTML
	}
	return &domain.WebResult{
		URL:        target,
		Title:      resp.Data.Metadata.Title,
		Content:    content,
		HTML:       resp.Data.HTML,
		SourceType: domain.SourceWeb,
	}, nil
}

type researchRequest struct {
	Query     string `json:"query"`
	MaxDepth  int    `json:"maxDepth,omitempty"`
	MaxURLs   int    `json:"maxUrls,omitempty"`
	TimeLimit int    `json:"timeLimit,omitempty"`
}

type researchStarted struct {
	envelope
	ID string `json:"id"`
}

type researchStatus struct {
	envelope
	Status string `json:"status"`
	Data   struct {
		FinalAnalysis string `json:"finalAnalysis"`
		Sources       []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"sources"`
	} `json:"data"`
}

// Research job states
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// DeepResearch starts a research job and polls it until it completes,
// fails, or the time limit passes
func (c *Client) DeepResearch(ctx context.Context, query string, opts domain.ResearchOptions) (*domain.ResearchResult, error) {
	req := researchRequest{
		Query:     query,
		MaxDepth:  opts.MaxDepth,
		MaxURLs:   opts.MaxURLs,
		TimeLimit: int(opts.TimeLimit.Seconds()),
	}

	var started researchStarted
	if err := c.api.Do(ctx, http.MethodPost, "/deep-research", req, &started); err != nil {
		return nil, fmt.Errorf("firecrawl deep research: %w", err)
	}
	if err := started.failed("deep research"); err != nil {
		return nil, err
	}
	if started.ID == "" {
		return nil, domain.NewAPIError(service, http.StatusOK, "deep research returned no job id", nil)
	}
	c.logger.Info().Str("topic", query).Str("job", started.ID).Msg("Deep research started")

	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		// allow one extra poll past the server-side limit
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit+c.interval(opts))
		defer cancel()
	}

	ticker := time.NewTicker(c.interval(opts))
	defer ticker.Stop()

	path := "/deep-research/" + url.PathEscape(started.ID)
	for {
		var status researchStatus
		if err := c.api.Do(ctx, http.MethodGet, path, nil, &status); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("deep research %s: %w", started.ID, domain.ErrTimeout)
			}
			return nil, fmt.Errorf("firecrawl deep research status: %w", err)
		}

		switch status.Status {
		case statusCompleted:
			return researchResult(query, status), nil
		case statusFailed:
			msg := status.Error
			if msg == "" {
				msg = "deep research failed"
			}
			return nil, domain.NewAPIError(service, http.StatusOK, msg, nil)
		}
		c.logger.Debug().Str("job", started.ID).Str("status", status.Status).Msg("Deep research in progress")

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("deep research %s: %w", started.ID, domain.ErrTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) interval(opts domain.ResearchOptions) time.Duration {
	if opts.PollInterval > 0 {
		return opts.PollInterval
	}
	return c.pollInterval
}

func researchResult(topic string, status researchStatus) *domain.ResearchResult {
	result := &domain.ResearchResult{Topic: topic, FinalAnalysis: status.Data.FinalAnalysis}
	for _, s := range status.Data.Sources {
		result.Sources = append(result.Sources, domain.WebResult{
			URL:        s.URL,
			Title:      s.Title,
			Content:    s.Description,
			SourceType: domain.SourceDeepResearch,
		})
	}
	return result
}
