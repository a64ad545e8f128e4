package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

const progressEvery = 100

// ChunkOptions controls EmbedChunks
type ChunkOptions struct {
	BatchSize int
	Logger    *utils.Logger
	Progress  *progressbar.ProgressBar
}

// EmbedChunks embeds the text of each chunk. Chunks with empty text are
// skipped. Every vector must have exactly dimension entries.
func EmbedChunks(ctx context.Context, embedder domain.Embedder, chunks []domain.Chunk, dimension int, opts ChunkOptions) ([]domain.EmbeddedChunk, error) {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	logger.Info().Int("chunks", len(chunks)).Msg("Embedding chunks")

	pending := make([]domain.Chunk, 0, len(chunks))
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			logger.Warn().Int("index", i).Str("file_path", c.FilePath).Str("url", c.URL).Msg("Skipping chunk with empty text")
			continue
		}
		pending = append(pending, c)
	}

	out := make([]domain.EmbeddedChunk, 0, len(pending))
	for start := 0; start < len(pending); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(batch))
		}

		for i, v := range vecs {
			if len(v) != dimension {
				return nil, fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, dimension, len(v))
			}
			out = append(out, domain.EmbeddedChunk{Chunk: batch[i], Embedding: v})

			done := len(out)
			if done%progressEvery == 0 {
				logger.Info().Msgf("Embedded %d/%d chunks", done, len(pending))
			}
		}
		if opts.Progress != nil {
			_ = opts.Progress.Add(len(batch))
		}
	}

	logger.Info().Int("embedded", len(out)).Msg("Successfully embedded chunks")
	return out, nil
}
