// Package validation checks that an ingested repository can be found in
// the vector index by sampling file paths from the repomix output.
package validation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strings"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/repomix"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/vectorstore"
)

// Defaults
const (
	DefaultSampleSize       = 5
	DefaultSuccessThreshold = 0.6
	DefaultTopK             = 50
	DefaultRetryTopK        = 100
)

// Options controls a validation run
type Options struct {
	SampleSize       int
	SuccessThreshold float64
	TopK             int
	RetryTopK        int
	// Rand picks the sampled paths; nil uses a randomly seeded source
	Rand   *rand.Rand
	Logger *utils.Logger
}

func (o *Options) applyDefaults() {
	if o.SampleSize <= 0 {
		o.SampleSize = DefaultSampleSize
	}
	if o.SuccessThreshold <= 0 || o.SuccessThreshold > 1 {
		o.SuccessThreshold = DefaultSuccessThreshold
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.RetryTopK <= 0 {
		o.RetryTopK = DefaultRetryTopK
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.Logger == nil {
		o.Logger = utils.NewNopLogger()
	}
}

// Validate samples file paths from the repomix output at repomixPath and
// looks for each in the namespace. Setup problems are reported in the
// returned report's Error rather than as a Go error.
func Validate(ctx context.Context, index domain.VectorIndex, namespace, repomixPath string, dimension int, opts Options) *domain.ValidationReport {
	opts.applyDefaults()
	log := opts.Logger
	log.Info().Str("namespace", namespace).Msg("Validating repository ingestion")

	data, err := os.ReadFile(repomixPath)
	if err != nil {
		msg := fmt.Sprintf("Failed to read Repomix output file: %v", err)
		if errors.Is(err, os.ErrNotExist) {
			msg = "Repomix output file not found: " + repomixPath
		}
		log.Error().Str("path", repomixPath).Msg(msg)
		return &domain.ValidationReport{Error: msg}
	}

	paths := repomix.ExtractFilePaths(string(data))
	if len(paths) == 0 {
		log.Warn().Msg("No file paths found in Repomix output")
		return &domain.ValidationReport{Error: "No file paths found in Repomix output"}
	}

	sample := samplePaths(paths, opts.SampleSize, opts.Rand)
	log.Info().Msgf("Validating %d random file paths from repository", len(sample))

	primary := constantVector(dimension)
	fallback := alternatingVector(dimension)

	report := &domain.ValidationReport{Results: make([]domain.PathResult, 0, len(sample))}
	for _, path := range sample {
		result := domain.PathResult{FilePath: path}

		matches, err := index.Query(ctx, namespace, primary, opts.TopK, true)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("Error querying index for file path")
			result.Error = err.Error()
			report.Results = append(report.Results, result)
			continue
		}
		log.Debug().Int("matches", len(matches)).Msg("Primary query returned matches")

		found := findPath(path, matches, &result)
		if !found {
			second, err := index.Query(ctx, namespace, fallback, opts.RetryTopK, true)
			if err != nil {
				log.Warn().Err(err).Str("file", path).Msg("Error during second query attempt")
			} else {
				log.Debug().Int("matches", len(second)).Msg("Second query returned matches")
				found = findPath(path, second, &result)
			}
		}

		if found {
			log.Info().Str("file", path).Str("field", result.MatchField).Msg("Found match for file path")
		} else {
			log.Warn().Str("file", path).Msg("No match found for file path")
		}
		report.Results = append(report.Results, result)
	}

	for _, r := range report.Results {
		if r.Found {
			report.FoundCount++
		}
	}
	report.TotalCount = len(report.Results)
	if report.TotalCount > 0 {
		report.SuccessRate = float64(report.FoundCount) / float64(report.TotalCount)
	}
	report.Success = report.SuccessRate >= opts.SuccessThreshold

	log.Info().Msgf("Validation success rate: %.2f%% (%d/%d)", report.SuccessRate*100, report.FoundCount, report.TotalCount)
	return report
}

// samplePaths picks min(n, len(paths)) distinct paths
func samplePaths(paths []string, n int, rng *rand.Rand) []string {
	if n >= len(paths) {
		n = len(paths)
	}
	idx := rng.Perm(len(paths))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = paths[j]
	}
	return out
}

func constantVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = 0.1
	}
	return v
}

func alternatingVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		if i%2 == 0 {
			v[i] = 0.2
		} else {
			v[i] = 0.3
		}
	}
	return v
}

// metadataOrder lists the keys checked first; other keys follow sorted
var metadataOrder = []string{
	vectorstore.MetaSourceType,
	vectorstore.MetaFilePath,
	vectorstore.MetaSourceURL,
	vectorstore.MetaText,
}

// findPath records the first match with a string metadata value that
// contains path or is contained in it. Empty values never match.
func findPath(path string, matches []domain.Match, result *domain.PathResult) bool {
	for _, m := range matches {
		for _, key := range orderedKeys(m.Metadata) {
			value, ok := m.Metadata[key].(string)
			if !ok || value == "" {
				continue
			}
			if strings.Contains(value, path) || strings.Contains(path, value) {
				result.Found = true
				result.MatchField = key
				result.MatchValue = value
				result.Score = m.Score
				return true
			}
		}
	}
	return false
}

func orderedKeys(meta map[string]any) []string {
	keys := make([]string, 0, len(meta))
	for _, k := range metadataOrder {
		if _, ok := meta[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range meta {
		if !isOrdered(k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func isOrdered(key string) bool {
	for _, k := range metadataOrder {
		if k == key {
			return true
		}
	}
	return false
}
