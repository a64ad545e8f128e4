package firecrawl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

func TestExtractTopics(t *testing.T) {
	chunks := []domain.Chunk{
		{FilePath: "README.md"},
		{FilePath: "go.mod"},
		{FilePath: "web/package.json"},
		{FilePath: "tools/go.mod"},
		{FilePath: "Dockerfile"},
		{FilePath: "svc/App.csproj"},
		{FilePath: "py/pyproject.toml"},
		{URL: "https://a.dev"},
	}

	tests := []struct {
		name string
		repo string
		max  int
		want []string
	}{
		{"default cap", "pinecone-helper", 0, []string{"pinecone-helper", "Go", "JavaScript", "Docker", "C#"}},
		{"custom cap", "pinecone-helper", 2, []string{"pinecone-helper", "Go"}},
		{"no repo name", "", 3, []string{"Go", "JavaScript", "Docker"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTopics(tt.repo, chunks, tt.max))
		})
	}
}

// topicScraper fails research for one topic
type topicScraper struct {
	MockScraper
	fail string
}

func (s topicScraper) DeepResearch(ctx context.Context, query string, opts domain.ResearchOptions) (*domain.ResearchResult, error) {
	if query == s.fail {
		return nil, errors.New("research quota exceeded")
	}
	return s.MockScraper.DeepResearch(ctx, query, opts)
}

func TestPerformDeepResearch(t *testing.T) {
	results := PerformDeepResearch(context.Background(), topicScraper{fail: "Go"}, []string{"repo", "Go", "Docker"}, domain.ResearchOptions{}, nil)
	require.Len(t, results, 3)

	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Equal(t, "Go", results[1].Topic)
	assert.Contains(t, results[1].Error, "quota")
	assert.False(t, results[2].Failed())
}

func TestPerformDeepResearch_LocalBackendUnsupported(t *testing.T) {
	results := PerformDeepResearch(context.Background(), NewLocalScraper(nil, nil), []string{"repo"}, domain.ResearchOptions{}, nil)
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
}

func TestEnrichChunks(t *testing.T) {
	chunks := []domain.Chunk{
		{Text: "main.go body", SourceType: domain.SourceRepository, FilePath: "main.go"},
		{Text: "readme", SourceType: domain.SourceRepository, FilePath: "README.md", Metadata: map[string]string{"lang": "md"}},
	}
	results := []domain.ResearchResult{
		{Topic: "repo", FinalAnalysis: "Repo analysis"},
		{Topic: "Go", Error: "failed"},
		{Topic: "Docker", FinalAnalysis: "Docker analysis"},
		{Topic: "Empty"},
	}

	enriched := EnrichChunks(chunks, results)
	require.Len(t, enriched, 4)

	assert.Equal(t, "repo, Docker, Empty", enriched[0].Metadata[MetaResearchTopics])
	assert.Equal(t, "md", enriched[1].Metadata["lang"])
	assert.Nil(t, chunks[0].Metadata, "input chunks must not be modified")
	assert.NotContains(t, chunks[1].Metadata, MetaResearchTopics)

	assert.Equal(t, domain.SourceDeepResearch, enriched[2].SourceType)
	assert.Equal(t, "Repo analysis", enriched[2].Text)
	assert.Equal(t, "repo", enriched[2].Metadata[MetaTopic])
	assert.Equal(t, "Docker analysis", enriched[3].Text)
}
