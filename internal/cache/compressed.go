package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

var _ domain.Cache = (*CompressedCache)(nil)

// CompressedCache stores values zstd compressed in another cache
type CompressedCache struct {
	next    domain.Cache
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressedCache wraps next
func NewCompressedCache(next domain.Cache) (*CompressedCache, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &CompressedCache{next: next, encoder: enc, decoder: dec}, nil
}

// Get returns the decompressed value. A value that does not decode is
// reported as a miss.
func (c *CompressedCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, domain.ErrCacheMiss
	}
	return out, nil
}

// Set compresses value before storing it
func (c *CompressedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.next.Set(ctx, key, c.encoder.EncodeAll(value, nil), ttl)
}

func (c *CompressedCache) Has(ctx context.Context, key string) bool {
	return c.next.Has(ctx, key)
}

func (c *CompressedCache) Delete(ctx context.Context, key string) error {
	return c.next.Delete(ctx, key)
}

// Close releases the codec and the wrapped cache
func (c *CompressedCache) Close() error {
	c.decoder.Close()
	_ = c.encoder.Close()
	return c.next.Close()
}
