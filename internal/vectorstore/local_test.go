package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

// TestLocalStore_IndexLifecycle tests create, list, describe and on-demand indexes
func TestLocalStore_IndexLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	require.NoError(t, s.CreateIndex(ctx, domain.CreateIndexRequest{Name: "b-repo", Dimension: 8, Metric: "dotproduct"}))
	require.NoError(t, s.CreateIndex(ctx, domain.CreateIndexRequest{Name: "b-repo", Dimension: 99, Metric: "cosine"}))

	_, err := s.DescribeIndex(ctx, "a-repo")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Index(ctx, "a-repo")
	require.NoError(t, err)

	indexes, err := s.ListIndexes(ctx)
	require.NoError(t, err)
	require.Len(t, indexes, 2)
	assert.Equal(t, domain.IndexDescription{Name: "a-repo", Dimension: MockDimension, Metric: "cosine", Ready: true}, indexes[0])
	assert.Equal(t, domain.IndexDescription{Name: "b-repo", Dimension: 8, Metric: "dotproduct", Ready: true}, indexes[1])
	assert.NoError(t, s.Close())
}

// TestLocalIndex_UpsertQueryDelete tests the data operations
func TestLocalIndex_UpsertQueryDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	require.NoError(t, s.CreateIndex(ctx, domain.CreateIndexRequest{Name: "repo", Dimension: 2, Metric: "cosine"}))
	idx, err := s.Index(ctx, "repo")
	require.NoError(t, err)

	n, err := idx.Upsert(ctx, "repo-code", []domain.Vector{
		{ID: "x", Values: []float32{1, 0}, Metadata: map[string]any{"file_path": "x.go", "text": "x", "truncated": true}},
		{ID: "y", Values: []float32{0, 1}, Metadata: map[string]any{"file_path": "y.go", "text": "y"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	matches, err := idx.Query(ctx, "repo-code", []float32{0.9, 0.1}, 50, true)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "x", matches[0].ID)
	assert.Equal(t, "x.go", matches[0].StringField("file_path"))
	assert.Equal(t, true, matches[0].Metadata["truncated"])
	assert.NotContains(t, matches[0].Metadata, jsonKeysField)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	// same id replaces
	_, err = idx.Upsert(ctx, "repo-code", []domain.Vector{{ID: "x", Values: []float32{1, 0}, Metadata: map[string]any{"file_path": "z.go"}}})
	require.NoError(t, err)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVectorCount)
	assert.Equal(t, map[string]int{"repo-code": 2}, stats.Namespaces)
	assert.Equal(t, 2, stats.Dimension)

	require.NoError(t, idx.Delete(ctx, "repo-code", []string{"x"}))
	require.NoError(t, idx.Delete(ctx, "other", []string{"x"}))
	matches, err = idx.Query(ctx, "repo-code", []float32{1, 0}, 10, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "y", matches[0].ID)

	empty, err := idx.Query(ctx, "unknown-ns", []float32{1, 0}, 10, true)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestLocalIndex_ZeroVectors keeps mock embeddings queryable
func TestLocalIndex_ZeroVectors(t *testing.T) {
	ctx := context.Background()
	idx, err := NewMemoryStore(nil).Index(ctx, "mock-repo")
	require.NoError(t, err)

	_, err = idx.Upsert(ctx, "ns", []domain.Vector{{ID: "a", Values: make([]float32, MockDimension), Metadata: map[string]any{"file_path": "a.go"}}})
	require.NoError(t, err)

	query := make([]float32, MockDimension)
	for i := range query {
		query[i] = 0.1
	}
	matches, err := idx.Query(ctx, "ns", query, 50, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-4)
}

// TestLocalStore_Persistent reopens a store from disk
func TestLocalStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewPersistentStore(dir, false, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateIndex(ctx, domain.CreateIndexRequest{Name: "repo", Dimension: 2, Metric: "cosine"}))
	idx, err := s.Index(ctx, "repo")
	require.NoError(t, err)
	_, err = idx.Upsert(ctx, "repo-code", []domain.Vector{{ID: "x", Values: []float32{1, 0}, Metadata: map[string]any{"text": "hello"}}})
	require.NoError(t, err)

	reopened, err := NewPersistentStore(dir, false, nil)
	require.NoError(t, err)
	desc, err := reopened.DescribeIndex(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 2, desc.Dimension)

	idx, err = reopened.Index(ctx, "repo")
	require.NoError(t, err)
	matches, err := idx.Query(ctx, "repo-code", []float32{1, 0}, 5, true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "hello", matches[0].StringField("text"))

	bare, err := idx.Query(ctx, "repo-code", []float32{1, 0}, 5, false)
	require.NoError(t, err)
	require.Len(t, bare, 1)
	assert.Equal(t, "x", bare[0].ID)
	assert.Nil(t, bare[0].Metadata)
}

// TestMetadataCodec keeps non-string values typed
func TestMetadataCodec(t *testing.T) {
	enc, err := encodeMetadata(map[string]any{"text": "t", "truncated": true, "n": 3})
	require.NoError(t, err)
	assert.Equal(t, "n,truncated", enc[jsonKeysField])

	dec := decodeMetadata(enc)
	assert.Equal(t, map[string]any{"text": "t", "truncated": true, "n": float64(3)}, dec)
}

// TestEnsureIndexExists_Local tests reuse of existing local indexes
func TestEnsureIndexExists_Local(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	idx, err := EnsureIndexExists(ctx, s, "repo", 16, "cosine", EnsureOptions{})
	require.NoError(t, err)
	require.NotNil(t, idx)

	desc, err := s.DescribeIndex(ctx, "repo")
	require.NoError(t, err)
	assert.Equal(t, 16, desc.Dimension)

	// mismatched dimension only warns
	_, err = EnsureIndexExists(ctx, s, "repo", 32, "euclidean", EnsureOptions{})
	require.NoError(t, err)
}
