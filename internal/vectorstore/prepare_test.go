package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

func embedded(c domain.Chunk) domain.EmbeddedChunk {
	return domain.EmbeddedChunk{Chunk: c, Embedding: []float32{0.1, 0.2}}
}

// TestPrepareVectors_Metadata tests metadata keys and ids
func TestPrepareVectors_Metadata(t *testing.T) {
	vectors := PrepareVectors([]domain.EmbeddedChunk{
		embedded(domain.Chunk{Text: "package main", SourceType: domain.SourceRepository, FilePath: "main.go"}),
		embedded(domain.Chunk{Text: "docs", SourceType: domain.SourceWeb, URL: "https://go.dev", Metadata: map[string]string{"title": "Go"}}),
		embedded(domain.Chunk{Text: "orphan"}),
	}, PrepareOptions{})
	require.Len(t, vectors, 3)

	repo := vectors[0]
	assert.True(t, strings.HasPrefix(repo.ID, "repository-"))
	_, err := uuid.Parse(strings.TrimPrefix(repo.ID, "repository-"))
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"source_type": "repository", "file_path": "main.go", "text": "package main"}, repo.Metadata)
	assert.Equal(t, []float32{0.1, 0.2}, repo.Values)

	web := vectors[1]
	assert.True(t, strings.HasPrefix(web.ID, "web-"))
	assert.Equal(t, map[string]any{"source_type": "web", "source_url": "https://go.dev", "title": "Go", "text": "docs"}, web.Metadata)

	assert.Equal(t, "unknown", vectors[2].Metadata["source_type"])
	assert.True(t, strings.HasPrefix(vectors[2].ID, "unknown-"))
}

// TestPrepareVectors_Truncation tests the metadata size limit
func TestPrepareVectors_Truncation(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"ascii", strings.Repeat("a", 2000)},
		{"multibyte", strings.Repeat("日本語", 400)},
		{"escapes", strings.Repeat("\"\n<", 500)},
	}
	const limit = 1024
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vectors := PrepareVectors([]domain.EmbeddedChunk{
				embedded(domain.Chunk{Text: tt.text, SourceType: domain.SourceRepository, FilePath: "big.txt"}),
			}, PrepareOptions{MetadataLimit: limit})
			require.Len(t, vectors, 1)
			meta := vectors[0].Metadata

			assert.Equal(t, true, meta["truncated"])
			text := meta["text"].(string)
			assert.True(t, utf8.ValidString(text))
			assert.True(t, strings.HasPrefix(tt.text, text))
			assert.Less(t, len(text), len(tt.text))

			b, err := json.Marshal(meta)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(b), limit-metadataSlack)
		})
	}
}

// TestPrepareVectors_FitsExactly leaves short text alone
func TestPrepareVectors_FitsExactly(t *testing.T) {
	vectors := PrepareVectors([]domain.EmbeddedChunk{embedded(domain.Chunk{Text: "short", SourceType: "web"})}, PrepareOptions{MetadataLimit: 1024})
	assert.NotContains(t, vectors[0].Metadata, "truncated")
	assert.Equal(t, "short", vectors[0].Metadata["text"])
}

// TestVectorID tests prefixed and bare ids
func TestVectorID(t *testing.T) {
	_, err := uuid.Parse(VectorID(""))
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(VectorID("web_search"), "web_search-"))
	assert.NotEqual(t, VectorID("x"), VectorID("x"))
}

// countingIndex records upsert batch sizes
type countingIndex struct {
	domain.VectorIndex
	batches  []int
	reported int
	err      error
}

func (c *countingIndex) Upsert(_ context.Context, _ string, vectors []domain.Vector) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.batches = append(c.batches, len(vectors))
	return c.reported, nil
}

// TestUpsertVectors tests batching and count fallback
func TestUpsertVectors(t *testing.T) {
	vectors := make([]domain.Vector, 250)

	idx := &countingIndex{}
	res, err := UpsertVectors(context.Background(), idx, vectors, "ns", UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 50}, idx.batches)
	assert.Equal(t, 250, res.TotalUpserted)

	idx = &countingIndex{reported: 1}
	res, err = UpsertVectors(context.Background(), idx, vectors[:5], "ns", UpsertOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, idx.batches)
	assert.Equal(t, 3, res.TotalUpserted)

	res, err = UpsertVectors(context.Background(), &countingIndex{}, nil, "ns", UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalUpserted)
}

// TestUpsertVectors_Error wraps failures in a stage error
func TestUpsertVectors_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := UpsertVectors(context.Background(), &countingIndex{err: boom}, make([]domain.Vector, 3), "ns", UpsertOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var stageErr *domain.StageError
	assert.True(t, errors.As(err, &stageErr))
}

// TestNaming tests namespace and index name rules
func TestNaming(t *testing.T) {
	assert.Equal(t, "repo-code", NamespaceForRepo("repo"))
	assert.Equal(t, "repo-code-enriched", EnrichedNamespace("repo-code"))

	tests := []struct {
		configured string
		repo       string
		want       string
	}{
		{"", "MyRepo", "myrepo-repo"},
		{"custom-index", "MyRepo", "custom-index"},
		{"patchwork-repo", "other", "other-repo"},
		{"patchwork-repo", "Patchwork", "patchwork-repo"},
	}
	for _, tt := range tests {
		t.Run(tt.configured+"/"+tt.repo, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveIndexName(tt.configured, tt.repo))
		})
	}
}
