package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/vectorstore"
)

// DefaultTopK is the number of matches a query returns by default
const DefaultTopK = 5

// maxPrintedText is where printed match text is cut
const maxPrintedText = 500

// QueryOptions selects where a query searches
type QueryOptions struct {
	// Repo names the repository; it derives Index and Namespace when
	// those are empty.
	Repo      string
	Index     string
	Namespace string
	TopK      int
	// Enriched searches the deep research namespace
	Enriched bool
}

// QueryResult is one match of a query
type QueryResult struct {
	ID         string  `json:"id"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
	FilePath   string  `json:"file_path,omitempty"`
	SourceURL  string  `json:"source_url,omitempty"`
	SourceType string  `json:"source_type,omitempty"`
}

// Querier searches an ingested repository
type Querier struct {
	deps *Dependencies
}

// NewQuerier creates a querier over deps
func NewQuerier(deps *Dependencies) *Querier {
	return &Querier{deps: deps}
}

// Query embeds text and returns the closest matches
func (q *Querier) Query(ctx context.Context, text string, opts QueryOptions) ([]QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("query text is required")
	}
	if opts.Index == "" && opts.Namespace == "" && opts.Repo == "" {
		return nil, errors.New("a repository, index or namespace is required")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	indexName := opts.Index
	if indexName == "" {
		indexName = vectorstore.ResolveIndexName(q.deps.Config.Pinecone.IndexName, opts.Repo)
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = vectorstore.NamespaceForRepo(opts.Repo)
	}
	if opts.Enriched {
		namespace = vectorstore.EnrichedNamespace(namespace)
	}

	log := q.deps.Logger.WithNamespace(indexName, namespace)
	log.Info().Msgf("Querying for: '%s'", text)

	embedder, err := q.deps.QueryEmbedder()
	if err != nil {
		return nil, err
	}
	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	mgr, err := q.deps.IndexManager()
	if err != nil {
		return nil, err
	}
	index, err := mgr.Index(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", indexName, err)
	}

	matches, err := index.Query(ctx, namespace, vec, opts.TopK, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	results := make([]QueryResult, len(matches))
	for i, m := range matches {
		results[i] = QueryResult{
			ID:         m.ID,
			Score:      m.Score,
			Text:       m.StringField(vectorstore.MetaText),
			FilePath:   m.StringField(vectorstore.MetaFilePath),
			SourceURL:  m.StringField(vectorstore.MetaSourceURL),
			SourceType: m.StringField(vectorstore.MetaSourceType),
		}
	}
	log.Info().Int("matches", len(results)).Msg("Query completed")
	return results, nil
}

// PrintQueryResults writes matches in the human readable query format
func PrintQueryResults(w io.Writer, query string, results []QueryResult) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No results found for query: '%s'\n", query)
		return
	}

	fmt.Fprintf(w, "\nTop %d results for query: '%s'\n", len(results), query)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	for i, r := range results {
		fmt.Fprintf(w, "Result %d (Score: %.4f):\n", i+1, r.Score)
		fmt.Fprintf(w, "Text: %s\n", truncateText(r.Text, maxPrintedText))
		if r.FilePath != "" {
			fmt.Fprintf(w, "File: %s\n", r.FilePath)
		}
		if r.SourceURL != "" {
			fmt.Fprintf(w, "Source: %s\n", r.SourceURL)
		}
		fmt.Fprintln(w, strings.Repeat("-", 80))
	}
}

func truncateText(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
