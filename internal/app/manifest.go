package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/git"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/manifest"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/output"
)

// ManifestResult is the outcome of ingesting one manifest repository
type ManifestResult struct {
	URL      string               `json:"url" yaml:"url"`
	Result   *domain.IngestResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error    string               `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration        `json:"duration" yaml:"duration"`
}

// ManifestReport summarizes a manifest run
type ManifestReport struct {
	Results              []ManifestResult `json:"results" yaml:"results"`
	Succeeded            int              `json:"succeeded" yaml:"succeeded"`
	Failed               int              `json:"failed" yaml:"failed"`
	TotalVectorsUpserted int              `json:"total_vectors_upserted" yaml:"total_vectors_upserted"`
	Duration             time.Duration    `json:"duration" yaml:"duration"`
}

// RunManifest loads a YAML or JSON manifest and ingests its repositories
func (o *Orchestrator) RunManifest(ctx context.Context, manifestPath string, base RunOptions) (*ManifestReport, error) {
	cfg, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	return o.RunManifestConfig(ctx, cfg, base)
}

// RunManifestConfig ingests every repository of a manifest, one after
// another. Without continue_on_error the first failure stops the run and
// is returned along with the partial report.
func (o *Orchestrator) RunManifestConfig(ctx context.Context, cfg *manifest.Config, base RunOptions) (*ManifestReport, error) {
	start := time.Now()
	total := len(cfg.Repositories)
	report := &ManifestReport{Results: make([]ManifestResult, 0, total)}

	o.logger.Info().
		Int("repositories", total).
		Bool("continue_on_error", cfg.Options.ContinueOnError).
		Msg("Starting manifest execution")

	var writer *output.Writer
	if cfg.Options.ReportDir != "" {
		writer = output.NewWriter(output.WriterOptions{Force: true})
	}

	var firstErr error
	for i, repo := range cfg.Repositories {
		if err := ctx.Err(); err != nil {
			o.logger.Warn().Msg("Manifest execution cancelled")
			report.Duration = time.Since(start)
			return report, err
		}

		o.logger.Info().
			Int("repo_idx", i).
			Int("total", total).
			Str("repo_url", repo.URL).
			Msg("Processing repository")

		repoStart := time.Now()
		res, err := o.Run(ctx, repo.URL, o.repoOptions(repo, cfg.Options, base))
		entry := ManifestResult{URL: repo.URL, Result: res, Duration: time.Since(repoStart)}

		if err != nil {
			entry.Error = err.Error()
			report.Failed++
			o.logger.Error().
				Err(err).
				Str("repo_url", repo.URL).
				Dur("duration", entry.Duration).
				Msg("Repository ingestion failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("repository %s failed: %w", repo.URL, err)
			}
		} else {
			report.Succeeded++
			report.TotalVectorsUpserted += res.TotalVectorsUpserted
			o.logger.Info().
				Str("repo_url", repo.URL).
				Dur("duration", entry.Duration).
				Msg("Repository ingestion completed")
			if writer != nil {
				path := filepath.Join(cfg.Options.ReportDir, git.ExtractRepoName(repo.URL)+".json")
				if err := writer.WriteReport(path, res); err != nil {
					o.logger.Warn().Err(err).Str("path", path).Msg("Failed to write repository report")
				}
			}
		}
		report.Results = append(report.Results, entry)

		if err != nil && !cfg.Options.ContinueOnError {
			o.logger.Warn().Msg("Stopping execution (continue_on_error=false)")
			report.Duration = time.Since(start)
			return report, firstErr
		}
	}

	report.Duration = time.Since(start)
	o.logger.Info().
		Dur("total_duration", report.Duration).
		Int("total", total).
		Int("success", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Manifest execution completed")

	if firstErr != nil {
		return report, fmt.Errorf("manifest completed with %d/%d failures: %w", report.Failed, total, firstErr)
	}
	return report, nil
}

// repoOptions layers a manifest entry over the command line options
func (o *Orchestrator) repoOptions(repo manifest.Repository, mo manifest.Options, base RunOptions) RunOptions {
	opts := base
	if repo.SearchQuery != "" {
		opts.SearchQuery = repo.SearchQuery
	}
	opts.NoFirecrawl = base.NoFirecrawl || repo.NoFirecrawl
	opts.NoDeepResearch = base.NoDeepResearch || repo.NoDeepResearch
	opts.Incremental = base.Incremental || mo.Incremental
	if repo.Namespace != "" {
		opts.Namespace = repo.Namespace
	}
	return opts
}
