package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// Vector metadata keys
const (
	MetaSourceType = "source_type"
	MetaFilePath   = "file_path"
	MetaSourceURL  = "source_url"
	MetaText       = "text"
	MetaTruncated  = "truncated"
)

// DefaultMetadataLimit is Pinecone's per-vector metadata limit in bytes
const DefaultMetadataLimit = 40 * 1024

// metadataSlack is kept free below the limit
const metadataSlack = 10

// DefaultUpsertBatchSize is the number of vectors per upsert request
const DefaultUpsertBatchSize = 100

// PrepareOptions controls PrepareVectors
type PrepareOptions struct {
	MetadataLimit int
	Logger        *utils.Logger
}

// PrepareVectors builds upsert records from embedded chunks. The chunk
// text is stored under the "text" key, truncated when the serialized
// metadata would exceed the limit.
func PrepareVectors(chunks []domain.EmbeddedChunk, opts PrepareOptions) []domain.Vector {
	limit := opts.MetadataLimit
	if limit <= 0 {
		limit = DefaultMetadataLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	vectors := make([]domain.Vector, 0, len(chunks))
	for _, c := range chunks {
		meta := baseMetadata(c.Chunk)

		text, truncated := fitText(meta, c.Text, limit)
		meta[MetaText] = text
		if truncated {
			meta[MetaTruncated] = true
			logger.Warn().
				Int("original_length", utf8.RuneCountInString(c.Text)).
				Int("truncated_length", utf8.RuneCountInString(text)).
				Msgf("Text truncated from %d to %d characters to fit metadata size limit",
					utf8.RuneCountInString(c.Text), utf8.RuneCountInString(text))
		}

		vectors = append(vectors, domain.Vector{
			ID:       VectorID(c.SourceType),
			Values:   c.Embedding,
			Metadata: meta,
		})
	}
	return vectors
}

func baseMetadata(c domain.Chunk) map[string]any {
	meta := make(map[string]any, len(c.Metadata)+5)
	// extra metadata first so the standard keys win
	for k, v := range c.Metadata {
		meta[k] = v
	}
	sourceType := c.SourceType
	if sourceType == "" {
		sourceType = domain.SourceUnknown
	}
	meta[MetaSourceType] = sourceType
	if sourceType == domain.SourceRepository && c.FilePath != "" {
		meta[MetaFilePath] = c.FilePath
	}
	if c.URL != "" {
		meta[MetaSourceURL] = c.URL
	}
	return meta
}

// fitText returns text, or its longest rune-aligned prefix whose JSON
// encoding keeps meta under limit. meta must not yet contain the text.
func fitText(meta map[string]any, text string, limit int) (string, bool) {
	if metadataSize(meta, text) <= limit-metadataSlack {
		return text, false
	}

	meta[MetaTruncated] = true
	defer delete(meta, MetaTruncated)

	// binary search over rune boundaries
	bounds := runeBoundaries(text)
	lo, hi := 0, len(bounds)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if metadataSize(meta, text[:bounds[mid]]) <= limit-metadataSlack {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return text[:bounds[lo]], true
}

// runeBoundaries returns every byte offset at which text can be cut,
// including 0 and len(text).
func runeBoundaries(text string) []int {
	out := make([]int, 0, len(text)+1)
	for i := range text {
		out = append(out, i)
	}
	return append(out, len(text))
}

func metadataSize(meta map[string]any, text string) int {
	meta[MetaText] = text
	defer delete(meta, MetaText)
	b, err := json.Marshal(meta)
	if err != nil {
		return 0
	}
	return len(b)
}

// VectorID returns "<prefix>-<uuid>", or a bare uuid without a prefix
func VectorID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// UpsertOptions controls UpsertVectors
type UpsertOptions struct {
	BatchSize int
	Logger    *utils.Logger
	Progress  *progressbar.ProgressBar
}

// UpsertVectors writes vectors in batches. When the index reports zero
// upserted for a batch, the batch size is counted instead.
func UpsertVectors(ctx context.Context, index domain.VectorIndex, vectors []domain.Vector, namespace string, opts UpsertOptions) (*domain.UpsertResult, error) {
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = DefaultUpsertBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	logger.Info().Msgf("Upserting %d vectors to namespace '%s'", len(vectors), namespace)

	total := 0
	batches := (len(vectors) + batchSize - 1) / batchSize
	for start := 0; start < len(vectors); start += batchSize {
		end := min(start+batchSize, len(vectors))
		batch := vectors[start:end]

		n, err := index.Upsert(ctx, namespace, batch)
		if err != nil {
			logger.Error().Err(err).Msg("Error upserting vectors")
			return nil, domain.NewStageError("upsert", fmt.Errorf("error upserting vectors: %w", err))
		}
		if n == 0 {
			n = len(batch)
		}
		total += n
		if opts.Progress != nil {
			_ = opts.Progress.Add(len(batch))
		}

		logger.Info().Msgf("Upserted batch %d/%d (%d/%d vectors)", start/batchSize+1, batches, total, len(vectors))
	}

	logger.Info().Msgf("Successfully upserted %d/%d vectors to namespace '%s'", total, len(vectors), namespace)
	return &domain.UpsertResult{TotalUpserted: total}, nil
}
