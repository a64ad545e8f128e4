package app

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

func TestLogResults(t *testing.T) {
	tests := []struct {
		name    string
		res     *domain.IngestResult
		want    []string
		notWant []string
	}{
		{
			name: "firecrawl disabled",
			res: &domain.IngestResult{
				Repository:          "service",
				IndexName:           "service-repo",
				Namespace:           "service-code",
				RepoChunks:          3,
				RepoVectorsUpserted: 3,
				Duration:            1500 * time.Microsecond,
			},
			want:    []string{"Repository: service", "Namespace: service-code", "Firecrawl processing was disabled", "Duration: 2ms"},
			notWant: []string{"URLs extracted", "Deep research topics", "Validation:"},
		},
		{
			name: "everything enabled",
			res: &domain.IngestResult{
				Repository:              "service",
				SkippedUnchanged:        2,
				FirecrawlEnabled:        true,
				URLsExtracted:           4,
				DeepResearchEnabled:     true,
				DeepResearchTopics:      2,
				EnrichedVectorsUpserted: 5,
				TotalVectorsUpserted:    9,
				Validation:              &domain.ValidationReport{Success: false, FoundCount: 1, TotalCount: 5},
			},
			want: []string{
				"Unchanged files skipped: 2",
				"URLs extracted: 4",
				"Deep research topics: 2",
				"Enriched vectors upserted: 5",
				"Total vectors upserted: 9",
				"Validation: failed (1/5 files found)",
			},
			notWant: []string{"Firecrawl processing was disabled"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := utils.NewLogger(utils.LoggerOptions{Level: "info", Format: "json", Output: &buf})
			require.NoError(t, err)

			LogResults(logger, tt.res)

			out := buf.String()
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, out, s)
			}
		})
	}
}
