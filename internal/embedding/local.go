package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// SparseProvider is a hashed bag-of-words embedding. Each lowercased
// word sets one of LocalDimension slots to 1 and the result is L2
// normalised.
type SparseProvider struct{}

// NewSparseProvider creates a SparseProvider
func NewSparseProvider() *SparseProvider {
	return &SparseProvider{}
}

func (SparseProvider) Name() string   { return ModelSparseV0 }
func (SparseProvider) Dimension() int { return LocalDimension }

func (SparseProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return sparseVector(text), nil
}

func (p SparseProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = sparseVector(t)
	}
	return out, nil
}

func sparseVector(text string) []float32 {
	vec := make([]float32, LocalDimension)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return vec
	}

	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%LocalDimension] = 1
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// MockProvider returns zero vectors
type MockProvider struct{}

// NewMockProvider creates a MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (MockProvider) Name() string   { return ModelMock }
func (MockProvider) Dimension() int { return LocalDimension }

func (MockProvider) Embed(context.Context, string) ([]float32, error) {
	return make([]float32, LocalDimension), nil
}

func (p MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, LocalDimension)
	}
	return out, nil
}
