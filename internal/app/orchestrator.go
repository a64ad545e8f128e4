// Package app wires the ingestion stages into a pipeline.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/config"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/embedding"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/firecrawl"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/git"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/metrics"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/state"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/validation"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/vectorstore"
)

// Stage names reported in StageError and the stage duration metric
const (
	StageClone    = "clone"
	StageRepomix  = "repomix"
	StageEmbedder = "embedder"
	StageIndex    = "index"
	StageEmbed    = "embed"
	StageUpsert   = "upsert"
	StageState    = "state"
	StageScrape   = "firecrawl"
	StageResearch = "deep_research"
	StageValidate = "validate"
)

// RunOptions holds the per-run switches of a pipeline run
type RunOptions struct {
	NoFirecrawl    bool
	NoDeepResearch bool
	SearchQuery    string
	Incremental    bool
	// Namespace replaces the "<repo>-code" default
	Namespace string
}

// Orchestrator runs the ingestion pipeline
type Orchestrator struct {
	config  *config.Config
	deps    *Dependencies
	logger  *utils.Logger
	metrics *metrics.Metrics
}

// NewOrchestrator creates an orchestrator over deps
func NewOrchestrator(deps *Dependencies) (*Orchestrator, error) {
	if deps == nil || deps.Config == nil {
		return nil, fmt.Errorf("dependencies with a config are required")
	}
	return &Orchestrator{
		config:  deps.Config,
		deps:    deps,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}, nil
}

// Close releases the dependencies
func (o *Orchestrator) Close() error {
	return o.deps.Close()
}

// run carries the state of one pipeline run between steps
type run struct {
	log        *utils.Logger
	opts       RunOptions
	repoName   string
	repo       *domain.RepoInfo
	outputPath string
	chunks     []domain.Chunk
	embedder   domain.Embedder
	index      domain.VectorIndex
	scraper    domain.Scraper
	result     *domain.IngestResult
}

// Run ingests one repository. Any stage failure is returned as a
// *domain.StageError; deep research and validation problems are logged
// and recorded in the result instead.
func (o *Orchestrator) Run(ctx context.Context, repoURL string, opts RunOptions) (*domain.IngestResult, error) {
	start := time.Now()
	repoName := git.ExtractRepoName(repoURL)
	r := &run{
		log:      o.logger.WithRepo(repoName),
		opts:     opts,
		repoName: repoName,
		result:   &domain.IngestResult{Repository: repoName},
	}

	r.log.Info().Msgf("Starting pipeline for repository: %s", repoName)

	err := o.execute(ctx, repoURL, r)
	o.metrics.RunFinished(err)
	if err != nil {
		r.log.Error().Err(err).Msg("Error in pipeline")
		return nil, err
	}

	r.result.Duration = time.Since(start)
	return r.result, nil
}

func (o *Orchestrator) execute(ctx context.Context, repoURL string, r *run) error {
	cfg := o.config
	res := r.result

	r.log.Info().Msg("Step 1: Clone or update repository")
	stageStart := time.Now()
	info, err := o.deps.Repos.CloneOrUpdate(ctx, repoURL, "")
	if err != nil {
		return stageError(StageClone, err)
	}
	r.repo = info
	res.Commit = info.Commit
	o.metrics.ObserveStage(StageClone, stageStart)

	r.log.Info().Msg("Step 2: Execute Repomix and process output")
	stageStart = time.Now()
	r.outputPath, err = o.deps.Packer.Execute(ctx, info.Path, cfg.Repomix.OutputFile)
	if err != nil {
		return stageError(StageRepomix, err)
	}
	r.chunks, err = o.deps.Parser.ParseOutput(r.outputPath)
	if err != nil {
		return stageError(StageRepomix, err)
	}
	res.RepoChunks = len(r.chunks)
	o.metrics.ChunksExtracted.WithLabelValues(domain.SourceRepository).Add(float64(len(r.chunks)))
	o.metrics.ObserveStage(StageRepomix, stageStart)

	r.log.Info().Msg("Step 3: Initialize embedding function")
	r.embedder, err = o.deps.Embedder()
	if err != nil {
		return stageError(StageEmbedder, err)
	}

	r.log.Info().Msg("Step 4: Initialize Pinecone client and ensure index exists")
	stageStart = time.Now()
	mgr, err := o.deps.IndexManager()
	if err != nil {
		return stageError(StageIndex, err)
	}
	res.IndexName = vectorstore.ResolveIndexName(cfg.Pinecone.IndexName, r.repoName)
	r.log.Info().Msgf("Using index name: %s", res.IndexName)
	r.index, err = vectorstore.EnsureIndexExists(ctx, mgr, res.IndexName, cfg.Pinecone.Dimension, cfg.Pinecone.Metric, vectorstore.EnsureOptions{
		Cloud:        cfg.Pinecone.Cloud,
		Region:       cfg.Pinecone.Region,
		ReadyTimeout: cfg.Pinecone.ReadyTimeout,
		Logger:       r.log,
	})
	if err != nil {
		return stageError(StageIndex, err)
	}
	o.metrics.ObserveStage(StageIndex, stageStart)

	res.Namespace = r.opts.Namespace
	if res.Namespace == "" {
		res.Namespace = vectorstore.NamespaceForRepo(r.repoName)
	}
	r.log = r.log.WithNamespace(res.IndexName, res.Namespace)

	r.log.Info().Msg("Step 5: Embed and upsert repository content")
	stageStart = time.Now()
	if r.opts.Incremental || cfg.State.Enabled {
		err = o.ingestIncremental(ctx, r)
	} else {
		var ing *ingested
		ing, err = o.ingest(ctx, r, r.chunks, res.Namespace, domain.SourceRepository)
		if ing != nil {
			res.RepoVectorsUpserted = ing.upserted
		}
	}
	if err != nil {
		return err
	}
	o.metrics.ObserveStage(StageUpsert, stageStart)

	res.FirecrawlEnabled = cfg.Firecrawl.Enabled && !r.opts.NoFirecrawl
	var webChunks []domain.Chunk
	if res.FirecrawlEnabled {
		stageStart = time.Now()
		webChunks, err = o.collectWebContent(ctx, r)
		if err != nil {
			return err
		}
		o.metrics.ObserveStage(StageScrape, stageStart)
	} else {
		r.log.Info().Msg("Steps 6-9: Firecrawl URL extraction and processing is disabled")
	}

	res.DeepResearchEnabled = res.FirecrawlEnabled && cfg.Firecrawl.DeepResearch.Enabled && !r.opts.NoDeepResearch
	if res.DeepResearchEnabled {
		r.log.Info().Msg("Step 10: Performing deep research on repository content")
		stageStart = time.Now()
		if err := o.deepResearch(ctx, r); err != nil {
			if ctx.Err() != nil {
				return stageError(StageResearch, ctx.Err())
			}
			r.log.Warn().Err(err).Msgf("Error in deep research: %v", err)
			r.log.Warn().Msg("Continuing pipeline without deep research")
		}
		o.metrics.ObserveStage(StageResearch, stageStart)
	} else {
		r.log.Info().Msg("Step 10: Deep research is disabled, skipping")
	}

	if res.FirecrawlEnabled && len(webChunks) > 0 {
		r.log.Info().Msg("Step 11: Embed and upsert Firecrawl content")
		ing, err := o.ingest(ctx, r, webChunks, res.Namespace, domain.SourceWeb)
		if err != nil {
			return err
		}
		res.FirecrawlVectorsUpserted = ing.upserted
	} else {
		r.log.Info().Msg("Step 11: Skipping Firecrawl content upsert (disabled or no chunks)")
	}

	r.log.Info().Msg("Step 12: Validating repository ingestion")
	stageStart = time.Now()
	res.Validation = o.validate(ctx, r)
	o.metrics.ObserveStage(StageValidate, stageStart)

	r.log.Info().Msg("Step 13: Report results")
	res.TotalVectorsUpserted = res.RepoVectorsUpserted + res.FirecrawlVectorsUpserted
	r.log.Info().Msgf("Pipeline completed successfully for repository: %s", r.repoName)
	r.log.Info().Msgf("Total vectors upserted: %d", res.TotalVectorsUpserted)
	return nil
}

// ingested pairs the embedded chunks with the vectors built from them
type ingested struct {
	chunks   []domain.EmbeddedChunk
	vectors  []domain.Vector
	upserted int
}

// ingest embeds, prepares and upserts chunks into namespace
func (o *Orchestrator) ingest(ctx context.Context, r *run, chunks []domain.Chunk, namespace, source string) (*ingested, error) {
	cfg := o.config
	if len(chunks) == 0 {
		return &ingested{}, nil
	}

	embedded, err := embedding.EmbedChunks(ctx, r.embedder, chunks, cfg.Pinecone.Dimension, embedding.ChunkOptions{
		BatchSize: cfg.Embedding.BatchSize,
		Logger:    r.log,
		Progress:  utils.NewProgressBar(len(chunks), utils.DescEmbedding, o.deps.Progress),
	})
	if err != nil {
		return nil, stageError(StageEmbed, err)
	}
	o.metrics.ChunksEmbedded.WithLabelValues(source).Add(float64(len(embedded)))

	vectors := vectorstore.PrepareVectors(embedded, vectorstore.PrepareOptions{
		MetadataLimit: cfg.Pinecone.MetadataLimit,
		Logger:        r.log,
	})
	for _, v := range vectors {
		if t, _ := v.Metadata[vectorstore.MetaTruncated].(bool); t {
			o.metrics.Truncations.Inc()
		}
	}

	up, err := vectorstore.UpsertVectors(ctx, r.index, vectors, namespace, vectorstore.UpsertOptions{
		BatchSize: cfg.Pinecone.BatchSize,
		Logger:    r.log,
		Progress:  utils.NewProgressBar(len(vectors), utils.DescUpserting, o.deps.Progress),
	})
	if err != nil {
		return nil, stageError(StageUpsert, err)
	}
	o.metrics.VectorsUpserted.WithLabelValues(namespace).Add(float64(up.TotalUpserted))

	return &ingested{chunks: embedded, vectors: vectors, upserted: up.TotalUpserted}, nil
}

// ingestIncremental upserts only the files whose content changed since
// the last recorded run, and deletes the vectors of changed or vanished
// files first.
func (o *Orchestrator) ingestIncremental(ctx context.Context, r *run) error {
	res := r.result
	st := state.NewManager(state.ManagerOptions{
		RepoDir:    r.repo.Path,
		Repository: r.repoName,
		Index:      res.IndexName,
		Namespace:  res.Namespace,
		Logger:     r.log,
	})
	if err := st.Load(ctx); err != nil {
		if errors.Is(err, state.ErrNoState) {
			r.log.Info().Msg("No previous state, ingesting all files")
		} else {
			r.log.Warn().Err(err).Msg("Could not load state, ingesting all files")
		}
	}

	order, byPath := groupByPath(r.chunks)
	hashes := make(map[string]string)
	var pending []domain.Chunk
	for _, path := range order {
		group := byPath[path]
		hash := contentHash(group)
		st.MarkSeen(path)
		if !st.ShouldProcess(path, hash) {
			res.SkippedUnchanged++
			continue
		}
		hashes[path] = hash
		pending = append(pending, group...)
	}

	var obsolete []string
	for path := range hashes {
		if f, ok := st.Get(path); ok {
			obsolete = append(obsolete, f.VectorIDs...)
		}
	}
	stale := st.Stale()
	for _, path := range stale {
		if f, ok := st.Get(path); ok {
			obsolete = append(obsolete, f.VectorIDs...)
		}
	}
	if len(obsolete) > 0 {
		r.log.Info().Int("vectors", len(obsolete)).Int("removed_files", len(stale)).Msg("Deleting vectors of changed and removed files")
		if err := r.index.Delete(ctx, res.Namespace, obsolete); err != nil {
			return stageError(StageState, fmt.Errorf("deleting obsolete vectors: %w", err))
		}
	}
	for _, path := range stale {
		st.Remove(path)
	}

	r.log.Info().
		Int("changed", len(hashes)).
		Int("unchanged", res.SkippedUnchanged).
		Msg("Incremental ingestion")

	ing, err := o.ingest(ctx, r, pending, res.Namespace, domain.SourceRepository)
	if err != nil {
		return err
	}
	res.RepoVectorsUpserted = ing.upserted

	ids := make(map[string][]string, len(hashes))
	for i, v := range ing.vectors {
		path := chunkKey(ing.chunks[i].Chunk)
		ids[path] = append(ids[path], v.ID)
	}
	now := time.Now()
	for path, hash := range hashes {
		st.Update(path, state.FileState{ContentHash: hash, VectorIDs: ids[path], IngestedAt: now})
	}
	st.SetCommit(r.repo.Commit)

	if err := st.Save(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Failed to save state")
	}
	return nil
}

// collectWebContent runs steps 6 to 9: search or scrape, then chunking
func (o *Orchestrator) collectWebContent(ctx context.Context, r *run) ([]domain.Chunk, error) {
	cfg := o.config.Firecrawl
	res := r.result

	r.log.Info().Msg("Step 6: Initialize Firecrawl client")
	scraper, err := o.deps.Scraper()
	if err != nil {
		return nil, stageError(StageScrape, err)
	}
	r.scraper = scraper

	var results []domain.WebResult
	if q := r.opts.SearchQuery; q != "" {
		r.log.Info().Msgf("Step 7: Performing Firecrawl search for query: '%s'", q)
		combined := r.repoName + " " + q
		r.log.Info().Msgf("Using combined search query: '%s'", combined)
		results, err = scraper.Search(ctx, combined, cfg.MaxURLs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stageError(StageScrape, ctx.Err())
			}
			r.log.Error().Err(err).Msgf("Error during Firecrawl search: %v", err)
			results = nil
		}
		r.log.Info().Msgf("Search completed, got %d results", len(results))
		r.log.Info().Msg("Step 8: Processing search results")
	} else {
		r.log.Info().Msg("Step 7: Extract URLs from Repomix output")
		urls, err := o.deps.Parser.ExtractURLs(r.outputPath)
		if err != nil {
			return nil, stageError(StageScrape, err)
		}
		res.URLsExtracted = len(urls)
		urls = firecrawl.PrepareURLs(urls, cfg.Exclude, cfg.MaxURLs)

		r.log.Info().Msg("Step 8: Scrape content from URLs")
		bar := utils.NewProgressBar(len(urls), utils.DescScraping, o.deps.Progress)
		results = firecrawl.ScrapeURLs(ctx, scraper, urls, firecrawl.ScrapeOptions{
			MaxRetries: cfg.MaxRetries,
			RetryWait:  cfg.RetryWait,
			Workers:    cfg.Workers,
			Scrape: domain.ScrapeOptions{
				Formats:         []string{"markdown"},
				OnlyMainContent: cfg.OnlyMainContent,
				WaitFor:         cfg.WaitFor,
			},
			Logger:   r.log,
			OnResult: func(_ string, err error) {
				o.metrics.URLResult(err)
				_ = bar.Add(1)
			},
		})
		if ctx.Err() != nil {
			return nil, stageError(StageScrape, ctx.Err())
		}
		r.log.Info().Msg("Step 9: Process Firecrawl content")
	}

	chunks := firecrawl.ProcessResults(results, cfg.ChunkSize, cfg.ChunkOverlap, r.log)
	r.log.Info().Msgf("Processed %d chunks from Firecrawl results", len(chunks))
	res.FirecrawlChunks = len(chunks)
	o.metrics.ChunksExtracted.WithLabelValues(domain.SourceWeb).Add(float64(len(chunks)))
	return chunks, nil
}

// deepResearch researches topics and upserts the enriched repository
// chunks into the enriched namespace.
func (o *Orchestrator) deepResearch(ctx context.Context, r *run) error {
	cfg := o.config.Firecrawl.DeepResearch
	res := r.result

	var topics []string
	if q := r.opts.SearchQuery; q != "" {
		topics = []string{q}
		r.log.Info().Msgf("Using provided search query for deep research: '%s'", q)
	} else {
		topics = firecrawl.ExtractTopics(r.repoName, r.chunks, cfg.MaxTopics)
		r.log.Info().Msgf("Extracted %d research topics: %s", len(topics), strings.Join(topics, ", "))
	}

	results := firecrawl.PerformDeepResearch(ctx, r.scraper, topics, domain.ResearchOptions{
		MaxDepth:     cfg.MaxDepth,
		MaxURLs:      cfg.MaxURLs,
		TimeLimit:    cfg.TimeLimit,
		PollInterval: cfg.PollInterval,
	}, r.log)
	res.DeepResearchTopics = len(results)

	enriched := firecrawl.EnrichChunks(r.chunks, results)
	o.metrics.ChunksExtracted.WithLabelValues(domain.SourceDeepResearch).Add(float64(len(enriched)))

	ing, err := o.ingest(ctx, r, enriched, vectorstore.EnrichedNamespace(res.Namespace), domain.SourceDeepResearch)
	if err != nil {
		return err
	}
	res.EnrichedVectorsUpserted = ing.upserted
	r.log.Info().Msgf("Upserted %d enriched vectors", ing.upserted)
	return nil
}

func (o *Orchestrator) validate(ctx context.Context, r *run) *domain.ValidationReport {
	cfg := o.config.Validation
	report := validation.Validate(ctx, r.index, r.result.Namespace, r.outputPath, o.config.Pinecone.Dimension, validation.Options{
		SampleSize:       cfg.SampleSize,
		SuccessThreshold: cfg.SuccessThreshold,
		TopK:             cfg.TopK,
		RetryTopK:        cfg.RetryTopK,
		Logger:           r.log,
	})
	o.metrics.ValidationRate.WithLabelValues(r.repoName).Set(report.SuccessRate)

	summary := fmt.Sprintf("%.2f%% of files found (%d/%d)", report.SuccessRate*100, report.FoundCount, report.TotalCount)
	if report.Success {
		r.log.Info().Msgf("Validation successful: %s", summary)
	} else {
		r.log.Warn().Msgf("Validation failed: %s", summary)
		if report.Error != "" {
			r.log.Warn().Msgf("Validation error: %s", report.Error)
		}
	}

	var found, missing []string
	for _, pr := range report.Results {
		if pr.Found {
			found = append(found, pr.FilePath)
		} else {
			missing = append(missing, pr.FilePath)
		}
	}
	if len(found) > 0 {
		r.log.Info().Msgf("Found files: %s", strings.Join(found, ", "))
	}
	if len(missing) > 0 {
		r.log.Warn().Msgf("Not found files: %s", strings.Join(missing, ", "))
	}
	return report
}

// stageError wraps err unless it already names a stage
func stageError(stage string, err error) error {
	var se *domain.StageError
	if errors.As(err, &se) {
		return err
	}
	return domain.NewStageError(stage, err)
}

// chunkKey identifies the file a repository chunk came from
func chunkKey(c domain.Chunk) string {
	if c.FilePath != "" {
		return c.FilePath
	}
	return c.SourceType
}

// groupByPath groups chunks by file, keeping first-seen order
func groupByPath(chunks []domain.Chunk) ([]string, map[string][]domain.Chunk) {
	var order []string
	byPath := make(map[string][]domain.Chunk)
	for _, c := range chunks {
		key := chunkKey(c)
		if _, ok := byPath[key]; !ok {
			order = append(order, key)
		}
		byPath[key] = append(byPath[key], c)
	}
	return order, byPath
}

func contentHash(chunks []domain.Chunk) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
