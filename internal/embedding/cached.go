package embedding

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/cache"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

// CachedEmbedder serves repeated texts from a cache and only sends the
// misses to the wrapped embedder.
type CachedEmbedder struct {
	next  domain.Embedder
	cache domain.Cache
	ttl   time.Duration

	hits   int
	misses int
}

// NewCachedEmbedder wraps next with a cache
func NewCachedEmbedder(next domain.Embedder, c domain.Cache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: c, ttl: ttl}
}

func (c *CachedEmbedder) Name() string   { return c.next.Name() }
func (c *CachedEmbedder) Dimension() int { return c.next.Dimension() }

// Stats returns the cache hits and misses seen so far
func (c *CachedEmbedder) Stats() (hits, misses int) {
	return c.hits, c.misses
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing    []string
		missingIdx []int
	)
	for i, t := range texts {
		if raw, err := c.cache.Get(ctx, cache.EmbeddingKey(c.next.Name(), t)); err == nil {
			if v, ok := decodeVector(raw); ok {
				out[i] = v
				c.hits++
				continue
			}
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	c.misses += len(missing)
	vecs, err := c.next.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, v := range vecs {
		out[missingIdx[j]] = v
		// a failed cache write only costs a re-embed later
		_ = c.cache.Set(ctx, cache.EmbeddingKey(c.next.Name(), missing[j]), encodeVector(v), c.ttl)
	}
	return out, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, bool) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, true
}
