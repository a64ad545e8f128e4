package converter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

// Options controls page conversion
type Options struct {
	// ContentSelector picks the main content instead of readability
	ContentSelector string
	// ExcludeSelector removes matching elements before conversion
	ExcludeSelector string
}

// Pipeline turns fetched responses into Markdown pages
type Pipeline struct {
	opts Options
	now  func() time.Time
}

// NewPipeline creates a conversion pipeline
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{opts: opts, now: time.Now}
}

// Convert decodes the body and converts it to Markdown. Markdown and
// plain text bodies pass through unchanged apart from whitespace cleanup.
func (p *Pipeline) Convert(ctx context.Context, resp *domain.Response) (*domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := ToUTF8(resp.Body, resp.ContentType)
	if err != nil {
		return nil, domain.NewFetchError(resp.URL, resp.StatusCode, err)
	}

	page := &domain.Page{URL: resp.URL, FetchedAt: p.now()}

	switch DetectKind(resp.ContentType, resp.URL) {
	case KindMarkdown:
		page.Markdown = CleanMarkdown(string(body))
		page.Title = markdownTitle(page.Markdown)
	case KindText:
		page.Markdown = CleanMarkdown(string(body))
	default:
		a, err := extract(string(body), resp.URL, p.opts.ContentSelector)
		if err != nil {
			return nil, err
		}
		clean, err := NewSanitizer(resp.URL, p.opts.ExcludeSelector).Sanitize(a.HTML)
		if err != nil {
			return nil, err
		}
		if page.Markdown, err = ToMarkdown(clean); err != nil {
			return nil, err
		}
		page.Title = a.Title
		page.Description = a.Description
	}

	sum := sha256.Sum256([]byte(page.Markdown))
	page.ContentHash = hex.EncodeToString(sum[:])
	return page, nil
}
