package firecrawl

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// PrepareURLs cleans URLs pulled out of repository text: trailing
// punctuation is trimmed, bare www. hosts get an https scheme, excluded
// and duplicate URLs are dropped, and the list is capped at max (0 means
// no cap). First-seen order is kept.
func PrepareURLs(urls []string, exclude []string, max int) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u := utils.TrimURLPunctuation(strings.TrimSpace(raw))
		if strings.HasPrefix(u, "www.") {
			u = "https://" + u
		}
		if !utils.IsHTTPURL(u) || utils.ExcludedByPattern(u, exclude) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// ScrapeOptions controls a batch scrape
type ScrapeOptions struct {
	MaxRetries int
	RetryWait  time.Duration
	Workers    int
	Scrape     domain.ScrapeOptions
	Logger     *utils.Logger
	// OnResult is called once per URL after its last attempt
	OnResult func(url string, err error)
}

// ScrapeURLs scrapes every URL, retrying each up to MaxRetries attempts.
// URLs that still fail are logged and left out. Results keep input order.
func ScrapeURLs(ctx context.Context, scraper domain.Scraper, urls []string, opts ScrapeOptions) []domain.WebResult {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	logger.Info().Int("urls", len(urls)).Str("backend", scraper.Name()).Msg("Scraping URLs")

	var done int64
	results, errs := utils.ParallelMap(ctx, urls, opts.Workers, func(ctx context.Context, _ int, url string) (*domain.WebResult, error) {
		res, err := scrapeWithRetry(ctx, scraper, url, opts, logger)
		if opts.OnResult != nil {
			opts.OnResult(url, err)
		}
		if n := atomic.AddInt64(&done, 1); n%10 == 0 {
			logger.Info().Msgf("Scraped %d/%d URLs", n, len(urls))
		}
		return res, err
	})

	out := make([]domain.WebResult, 0, len(urls))
	for i, res := range results {
		if errs[i] != nil || res == nil {
			continue
		}
		out = append(out, *res)
	}
	logger.Info().Msgf("Successfully scraped %d/%d URLs", len(out), len(urls))
	return out
}

func scrapeWithRetry(ctx context.Context, scraper domain.Scraper, url string, opts ScrapeOptions, logger *utils.Logger) (*domain.WebResult, error) {
	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		res, err := scraper.Scrape(ctx, url, opts.Scrape)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, domain.ErrNotSupported) || errors.Is(err, domain.ErrInvalidURL) {
			break
		}
		logger.Warn().Err(err).Str("url", url).Msgf("Error scraping URL (attempt %d/%d)", attempt, opts.MaxRetries)
		if attempt < opts.MaxRetries && opts.RetryWait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.RetryWait):
			}
		}
	}
	logger.Error().Err(lastErr).Str("url", url).Msgf("Failed to scrape URL after %d attempts", opts.MaxRetries)
	return nil, lastErr
}
