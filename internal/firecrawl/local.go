package firecrawl

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gocolly/colly/v2"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/converter"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

const maxBodySize = 10 * 1024 * 1024

var _ domain.Scraper = (*LocalScraper)(nil)

// cookieSource is implemented by fetchers that keep a session cookie jar
type cookieSource interface {
	GetCookies(rawURL string) []*http.Cookie
}

// LocalScraper scrapes pages itself instead of calling Firecrawl. It has
// no search index, so Search and DeepResearch are not supported.
type LocalScraper struct {
	fetcher domain.Fetcher
	logger  *utils.Logger
}

// NewLocalScraper creates a scraper that fetches through fetcher
func NewLocalScraper(fetcher domain.Fetcher, logger *utils.Logger) *LocalScraper {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &LocalScraper{fetcher: fetcher, logger: logger.WithComponent("local-scraper")}
}

// Name returns the backend name
func (s *LocalScraper) Name() string {
	return "local"
}

// Search is not supported by the local backend
func (s *LocalScraper) Search(context.Context, string, int) ([]domain.WebResult, error) {
	return nil, fmt.Errorf("local scraper search: %w", domain.ErrNotSupported)
}

// DeepResearch is not supported by the local backend
func (s *LocalScraper) DeepResearch(context.Context, string, domain.ResearchOptions) (*domain.ResearchResult, error) {
	return nil, fmt.Errorf("local scraper deep research: %w", domain.ErrNotSupported)
}

// Scrape fetches target with colly over the stealth transport and
// converts the body to Markdown
func (s *LocalScraper) Scrape(ctx context.Context, target string, opts domain.ScrapeOptions) (*domain.WebResult, error) {
	if !utils.IsHTTPURL(target) {
		return nil, domain.NewFetchError(target, 0, domain.ErrInvalidURL)
	}

	convOpts := converter.Options{}
	if !opts.OnlyMainContent {
		convOpts.ContentSelector = "body"
	}
	pipeline := converter.NewPipeline(convOpts)

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxBodySize),
	)
	c.WithTransport(contextTransport{ctx: ctx, next: s.fetcher.Transport()})

	var (
		result  *domain.WebResult
		convErr error
	)
	c.OnResponse(func(r *colly.Response) {
		resp := &domain.Response{
			StatusCode: r.StatusCode,
			Body:       r.Body,
			URL:        r.Request.URL.String(),
		}
		if r.Headers != nil {
			resp.Headers = *r.Headers
			resp.ContentType = r.Headers.Get("Content-Type")
		}

		page, err := pipeline.Convert(ctx, resp)
		if err != nil {
			convErr = err
			return
		}
		result = &domain.WebResult{
			URL:        target,
			Title:      page.Title,
			Content:    page.Markdown,
			SourceType: domain.SourceWeb,
		}
		if slices.Contains(opts.Formats, "html") {
			result.HTML = string(r.Body)
		}
	})

	if err := c.Visit(target); err != nil {
		s.logger.Debug().Err(err).Str("url", target).Msg("Scrape failed")
		return nil, err
	}
	if convErr != nil {
		return nil, fmt.Errorf("convert %s: %w", target, convErr)
	}
	if result == nil {
		return nil, domain.NewFetchError(target, 0, fmt.Errorf("no response"))
	}
	if strings.TrimSpace(result.Content) == "" {
		s.explainEmpty(target)
	}
	return result, nil
}

// explainEmpty logs the cookies a site set on a page that converted to
// nothing. Consent banners and bot walls usually answer that way.
func (s *LocalScraper) explainEmpty(target string) {
	jar, ok := s.fetcher.(cookieSource)
	if !ok {
		return
	}
	cookies := jar.GetCookies(target)
	if len(cookies) == 0 {
		s.logger.Warn().Str("url", target).Msg("Page has no content")
		return
	}
	names := make([]string, len(cookies))
	for i, c := range cookies {
		names[i] = c.Name
	}
	s.logger.Warn().
		Str("url", target).
		Strs("cookies", names).
		Msg("Page has no content but set session cookies, likely a consent or bot wall")
}

// contextTransport binds the scrape context to requests colly creates
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}
