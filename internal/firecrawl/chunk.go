package firecrawl

import (
	"strings"
	"unicode/utf8"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// ChunkContent splits content into pieces of at most max bytes, breaking
// at the last space inside each window. Consecutive chunks share overlap
// bytes. Content that fits is returned whole.
func ChunkContent(content string, max, overlap int) []string {
	if max <= 0 || len(content) <= max {
		return []string{content}
	}
	if overlap < 0 || overlap >= max {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(content) {
		end := start + max
		if end < len(content) {
			if i := strings.LastIndexByte(content[start:end], ' '); i > 0 {
				end = start + i
			} else {
				for end > start+1 && !utf8.RuneStart(content[end]) {
					end--
				}
			}
		} else {
			end = len(content)
		}

		if chunk := strings.TrimSpace(content[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(content) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		for next < end && !utf8.RuneStart(content[next]) {
			next++
		}
		start = next
	}
	return chunks
}

// ProcessResults turns web results into chunks ready for embedding.
// Results without content are skipped. chunkSize 0 keeps each result
// as one chunk.
func ProcessResults(results []domain.WebResult, chunkSize, overlap int, logger *utils.Logger) []domain.Chunk {
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	var chunks []domain.Chunk
	for _, r := range results {
		if strings.TrimSpace(r.Content) == "" {
			logger.Warn().Str("url", r.URL).Msg("No content found for URL")
			continue
		}
		sourceType := r.SourceType
		if sourceType == "" {
			sourceType = domain.SourceWeb
		}

		pieces := []string{r.Content}
		if chunkSize > 0 {
			pieces = ChunkContent(r.Content, chunkSize, overlap)
		}
		for _, text := range pieces {
			chunks = append(chunks, domain.Chunk{
				Text:       text,
				SourceType: sourceType,
				URL:        r.URL,
				Metadata: map[string]string{
					"url":         r.URL,
					"title":       r.Title,
					"source_type": sourceType,
				},
			})
		}
	}
	logger.Info().Int("chunks", len(chunks)).Msg("Processed web content chunks")
	return chunks
}
