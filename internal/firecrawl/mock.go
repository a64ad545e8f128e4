package firecrawl

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

var _ domain.Scraper = MockScraper{}

// MockScraper returns deterministic placeholder content without network
// access. It backs --mock-mode.
type MockScraper struct{}

// Name returns the backend name
func (MockScraper) Name() string {
	return "mock"
}

// Search returns three synthetic results for query: a documentation
// page, a tutorial and a blog post. limit caps the count.
func (MockScraper) Search(ctx context.Context, query string, limit int) ([]domain.WebResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title := cases.Title(language.Und).String(query)
	slug := strings.ReplaceAll(query, " ", "-")
	ident := strings.ReplaceAll(strings.ToLower(query), " ", "_")

	results := []domain.WebResult{
		{
			URL:   "https://example.com/documentation/" + slug,
			Title: "Comprehensive Guide to " + title,
			Content: fmt.Sprintf("# %s Documentation\n\n"+
				"This is comprehensive documentation about %s. The search query was used to generate this result for testing purposes.\n\n"+
				"## Key Features\n\n"+
				"- Feature 1: Description of feature 1 related to %[2]s\n"+
				"- Feature 2: Description of feature 2 related to %[2]s\n"+
				"- Feature 3: Description of feature 3 related to %[2]s\n\n"+
				"## Usage Examples\n\n"+
				"```python\n# Example code for %[2]s\nimport %[3]s\n\nresult = %[3]s.process()\nprint(result)\n```",
				title, query, ident),
			SourceType: domain.SourceWebSearchMock,
		},
		{
			URL:   "https://example.com/tutorials/" + slug + "-guide",
			Title: "Advanced Tutorial: Working with " + title,
			Content: fmt.Sprintf("# Advanced %s Tutorial\n\n"+
				"This tutorial covers advanced techniques for working with %s.\n\n"+
				"## Prerequisites\n\n- Basic understanding of %[2]s\n- Familiarity with related technologies\n\n"+
				"## Advanced Topics\n\n1. Integration with other systems\n2. Performance optimization\n3. Security considerations\n\n"+
				"## Best Practices\n\nWhen working with %[2]s, consider the following best practices:\n\n"+
				"- Always validate inputs\n- Use proper error handling\n- Follow the principle of least privilege",
				title, query),
			SourceType: domain.SourceWebSearchMock,
		},
		{
			URL:   "https://example.com/blog/latest-developments-in-" + slug,
			Title: "Latest Developments in " + title + " Technology",
			Content: fmt.Sprintf("# Latest Developments in %s\n\n"+
				"Stay up-to-date with the most recent advancements in %s technology.\n\n"+
				"## Recent Updates\n\n- New version released with improved performance\n- Enhanced security features\n- Better integration capabilities\n\n"+
				"## Community Contributions\n\nThe %[2]s community has been actively contributing to its development:\n\n"+
				"- New plugins and extensions\n- Comprehensive documentation\n- Active support forums",
				title, query),
			SourceType: domain.SourceWebSearchMock,
		},
	}

	if limit > 0 && limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Scrape returns a placeholder page for target
func (MockScraper) Scrape(ctx context.Context, target string, _ domain.ScrapeOptions) (*domain.WebResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &domain.WebResult{
		URL:        target,
		Title:      "Content from " + target,
		Content:    fmt.Sprintf("# Content from %s\n\nThis is a placeholder for the content that would be scraped from %[1]s.", target),
		SourceType: domain.SourceWeb,
	}, nil
}

// DeepResearch returns a synthetic analysis citing the mock search results
func (m MockScraper) DeepResearch(ctx context.Context, query string, _ domain.ResearchOptions) (*domain.ResearchResult, error) {
	sources, err := m.Search(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	for i := range sources {
		sources[i].SourceType = domain.SourceDeepResearch
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Research: %s\n\n", query)
	fmt.Fprintf(&b, "%s is covered by %d reference sources.\n\n", query, len(sources))
	b.WriteString("## Sources\n\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "- [%s](%s)\n", s.Title, s.URL)
	}

	return &domain.ResearchResult{
		Topic:         query,
		FinalAnalysis: strings.TrimSpace(b.String()),
		Sources:       sources,
	}, nil
}
