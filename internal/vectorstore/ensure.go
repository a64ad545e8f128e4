package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// EnsureOptions controls EnsureIndexExists
type EnsureOptions struct {
	Cloud        string
	Region       string
	ReadyTimeout time.Duration
	PollInterval time.Duration
	Logger       *utils.Logger
}

// EnsureIndexExists returns a handle on the named index, creating a
// serverless index and waiting for it to become ready when it is missing.
// An existing index with a different dimension or metric is reused with
// a warning.
func EnsureIndexExists(ctx context.Context, mgr domain.IndexManager, name string, dimension int, metric string, opts EnsureOptions) (domain.VectorIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if opts.Cloud == "" {
		opts.Cloud = "aws"
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}

	logger.Info().Str("index", name).Msg("Ensuring index exists")

	indexes, err := mgr.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("error ensuring index exists: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name != name {
			continue
		}
		logger.Info().Str("index", name).Msg("Index already exists")
		if idx.Dimension != 0 && idx.Dimension != dimension {
			logger.Warn().Int("index_dimension", idx.Dimension).Int("configured_dimension", dimension).Msg("Existing index dimension differs from configuration")
		}
		if idx.Metric != "" && !strings.EqualFold(idx.Metric, metric) {
			logger.Warn().Str("index_metric", idx.Metric).Str("configured_metric", metric).Msg("Existing index metric differs from configuration")
		}
		return mgr.Index(ctx, name)
	}

	logger.Info().Msgf("Creating new serverless index: %s (dimension: %d, metric: %s)", name, dimension, metric)
	err = mgr.CreateIndex(ctx, domain.CreateIndexRequest{
		Name:      name,
		Dimension: dimension,
		Metric:    metric,
		Cloud:     opts.Cloud,
		Region:    opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("error ensuring index exists: %w", err)
	}

	logger.Info().Msg("Waiting for index to be ready...")
	if err := waitReady(ctx, mgr, name, opts); err != nil {
		return nil, err
	}
	logger.Info().Str("index", name).Msg("Index created successfully")
	return mgr.Index(ctx, name)
}

func waitReady(ctx context.Context, mgr domain.IndexManager, name string, opts EnsureOptions) error {
	ctx, cancel := context.WithTimeout(ctx, opts.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		desc, err := mgr.DescribeIndex(ctx, name)
		switch {
		case err == nil && desc.Ready:
			return nil
		case err != nil && !errors.Is(err, domain.ErrNotFound) && !domain.IsRetryable(err) && ctx.Err() == nil:
			return fmt.Errorf("error waiting for index %s: %w", name, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("index %s not ready after %s: %w", name, opts.ReadyTimeout, domain.ErrIndexNotReady)
		case <-ticker.C:
		}
	}
}
