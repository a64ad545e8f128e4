package app

import (
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// LogResults logs the summary of a finished run
func LogResults(logger *utils.Logger, res *domain.IngestResult) {
	logger.Info().Msg("Pipeline Results:")
	logger.Info().Msgf("Repository: %s", res.Repository)
	logger.Info().Msgf("Index name: %s", res.IndexName)
	logger.Info().Msgf("Namespace: %s", res.Namespace)
	logger.Info().Msgf("Repository chunks: %d", res.RepoChunks)
	logger.Info().Msgf("Repository vectors upserted: %d", res.RepoVectorsUpserted)
	if res.SkippedUnchanged > 0 {
		logger.Info().Msgf("Unchanged files skipped: %d", res.SkippedUnchanged)
	}

	if res.FirecrawlEnabled {
		logger.Info().Msgf("URLs extracted: %d", res.URLsExtracted)
		logger.Info().Msgf("Firecrawl chunks: %d", res.FirecrawlChunks)
		logger.Info().Msgf("Firecrawl vectors upserted: %d", res.FirecrawlVectorsUpserted)
	} else {
		logger.Info().Msg("Firecrawl processing was disabled")
	}
	if res.DeepResearchEnabled {
		logger.Info().Msgf("Deep research topics: %d", res.DeepResearchTopics)
		logger.Info().Msgf("Enriched vectors upserted: %d", res.EnrichedVectorsUpserted)
	}

	logger.Info().Msgf("Total vectors upserted: %d", res.TotalVectorsUpserted)

	if v := res.Validation; v != nil {
		if v.Success {
			logger.Info().Msgf("Validation: passed (%d/%d files found)", v.FoundCount, v.TotalCount)
		} else {
			logger.Warn().Msgf("Validation: failed (%d/%d files found)", v.FoundCount, v.TotalCount)
		}
	}
	logger.Info().Msgf("Duration: %s", res.Duration.Round(time.Millisecond))
}
