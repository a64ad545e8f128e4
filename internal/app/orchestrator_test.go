package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/config"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/embedding"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/firecrawl"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/manifest"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/mocks"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/state"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/vectorstore"
)

// fakeRepos hands out one checkout directory per repository name
type fakeRepos struct {
	root string
	err  error
}

func (f *fakeRepos) CloneOrUpdate(_ context.Context, repoURL, _ string) (*domain.RepoInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	name := strings.TrimSuffix(filepath.Base(repoURL), ".git")
	dir := filepath.Join(f.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &domain.RepoInfo{Name: name, URL: repoURL, Path: dir, Commit: "abc123"}, nil
}

// fakePacker writes a repomix document built from files
type fakePacker struct {
	files map[string]string
	calls int
}

func (f *fakePacker) Execute(_ context.Context, repoPath, outputFile string) (string, error) {
	f.calls++
	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString("<repository>\n<file_summary>Packed for tests.</file_summary>\n<directory_structure>\n")
	for _, p := range paths {
		b.WriteString(p + "\n")
	}
	b.WriteString("</directory_structure>\n<files>\n")
	for _, p := range paths {
		fmt.Fprintf(&b, "<file path=%q>%s</file>\n", p, f.files[p])
	}
	b.WriteString("</files>\n</repository>\n")

	out := filepath.Join(repoPath, outputFile)
	return out, os.WriteFile(out, []byte(b.String()), 0o644)
}

func defaultFiles() map[string]string {
	return map[string]string{
		"main.go":   "package main // see https://go.dev/doc for details",
		"README.md": "The service docs live at https://docs.acme.dev/guide",
		"go.mod":    "module acme.dev/service",
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pinecone.Dimension = embedding.LocalDimension
	cfg.Cache.Enabled = false
	cfg.Firecrawl.RetryWait = 0
	cfg.Firecrawl.DeepResearch.Enabled = true
	cfg.Firecrawl.DeepResearch.PollInterval = 0
	cfg.Logging.Level = "error"
	return cfg
}

type harness struct {
	orch   *Orchestrator
	deps   *Dependencies
	store  *vectorstore.LocalStore
	packer *fakePacker
	repos  *fakeRepos
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		store:  vectorstore.NewMemoryStore(utils.NewNopLogger()),
		packer: &fakePacker{files: defaultFiles()},
		repos:  &fakeRepos{root: t.TempDir()},
	}
	deps, err := NewDependencies(DependencyOptions{
		Config:       cfg,
		Logger:       utils.NewNopLogger(),
		Repos:        h.repos,
		Packer:       h.packer,
		Embedder:     embedding.NewSparseProvider(),
		IndexManager: h.store,
		Scraper:      firecrawl.MockScraper{},
	})
	require.NoError(t, err)
	h.deps = deps

	orch, err := NewOrchestrator(deps)
	require.NoError(t, err)
	t.Cleanup(func() { orch.Close() })
	h.orch = orch
	return h
}

func (h *harness) namespaceCount(t *testing.T, index, namespace string) int {
	t.Helper()
	idx, err := h.store.Index(context.Background(), index)
	require.NoError(t, err)
	stats, err := idx.Stats(context.Background())
	require.NoError(t, err)
	return stats.Namespaces[namespace]
}

func TestNewOrchestrator_RequiresConfig(t *testing.T) {
	_, err := NewOrchestrator(nil)
	assert.Error(t, err)

	_, err = NewOrchestrator(&Dependencies{})
	assert.Error(t, err)
}

func TestOrchestrator_Run_FullPipeline(t *testing.T) {
	h := newHarness(t, testConfig())

	res, err := h.orch.Run(context.Background(), "https://github.com/acme/service.git", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "service", res.Repository)
	assert.Equal(t, "service-repo", res.IndexName)
	assert.Equal(t, "service-code", res.Namespace)
	assert.Equal(t, "abc123", res.Commit)
	assert.Equal(t, 3, res.RepoChunks)
	assert.Equal(t, 3, res.RepoVectorsUpserted)

	assert.True(t, res.FirecrawlEnabled)
	assert.Equal(t, 2, res.URLsExtracted)
	assert.Equal(t, 2, res.FirecrawlChunks)
	assert.Equal(t, 2, res.FirecrawlVectorsUpserted)

	assert.True(t, res.DeepResearchEnabled)
	// repository name plus Go from go.mod
	assert.Equal(t, 2, res.DeepResearchTopics)
	assert.Equal(t, 5, res.EnrichedVectorsUpserted)

	assert.Equal(t, 5, res.TotalVectorsUpserted)
	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.Success)
	assert.Equal(t, 3, res.Validation.FoundCount)
	assert.Positive(t, res.Duration)

	assert.Equal(t, 5, h.namespaceCount(t, "service-repo", "service-code"))
	assert.Equal(t, 5, h.namespaceCount(t, "service-repo", "service-code-enriched"))
}

func TestOrchestrator_Run_Toggles(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(cfg *config.Config)
		opts          RunOptions
		wantFirecrawl bool
		wantResearch  bool
	}{
		{
			name:          "no firecrawl flag",
			opts:          RunOptions{NoFirecrawl: true},
			wantFirecrawl: false,
			wantResearch:  false,
		},
		{
			name:          "firecrawl disabled in config",
			mutate:        func(cfg *config.Config) { cfg.Firecrawl.Enabled = false },
			wantFirecrawl: false,
			wantResearch:  false,
		},
		{
			name:          "no deep research flag",
			opts:          RunOptions{NoDeepResearch: true},
			wantFirecrawl: true,
			wantResearch:  false,
		},
		{
			name:          "deep research disabled in config",
			mutate:        func(cfg *config.Config) { cfg.Firecrawl.DeepResearch.Enabled = false },
			wantFirecrawl: true,
			wantResearch:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			h := newHarness(t, cfg)

			res, err := h.orch.Run(context.Background(), "https://github.com/acme/service", tt.opts)
			require.NoError(t, err)

			assert.Equal(t, tt.wantFirecrawl, res.FirecrawlEnabled)
			assert.Equal(t, tt.wantResearch, res.DeepResearchEnabled)
			if !tt.wantFirecrawl {
				assert.Zero(t, res.URLsExtracted)
				assert.Zero(t, res.FirecrawlVectorsUpserted)
				assert.Equal(t, res.RepoVectorsUpserted, res.TotalVectorsUpserted)
			}
			if !tt.wantResearch {
				assert.Zero(t, res.EnrichedVectorsUpserted)
				assert.Zero(t, h.namespaceCount(t, "service-repo", "service-code-enriched"))
			}
		})
	}
}

func TestOrchestrator_Run_SearchQuery(t *testing.T) {
	cfg := testConfig()
	cfg.Firecrawl.DeepResearch.Enabled = false
	cfg.Firecrawl.MaxURLs = 2
	h := newHarness(t, cfg)

	res, err := h.orch.Run(context.Background(), "https://github.com/acme/service", RunOptions{SearchQuery: "grpc"})
	require.NoError(t, err)

	// search replaces URL extraction
	assert.Zero(t, res.URLsExtracted)
	assert.GreaterOrEqual(t, res.FirecrawlChunks, 2)
	assert.Equal(t, res.FirecrawlChunks, res.FirecrawlVectorsUpserted)
}

func TestOrchestrator_Run_CustomNamespace(t *testing.T) {
	cfg := testConfig()
	cfg.Pinecone.IndexName = "shared"
	h := newHarness(t, cfg)

	res, err := h.orch.Run(context.Background(), "https://github.com/acme/service", RunOptions{
		Namespace:   "svc",
		NoFirecrawl: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "shared", res.IndexName)
	assert.Equal(t, "svc", res.Namespace)
	assert.Equal(t, 3, h.namespaceCount(t, "shared", "svc"))
}

func TestOrchestrator_Run_StageErrors(t *testing.T) {
	t.Run("clone", func(t *testing.T) {
		h := newHarness(t, testConfig())
		h.repos.err = errors.New("authentication required")

		res, err := h.orch.Run(context.Background(), "https://github.com/acme/private", RunOptions{})
		assert.Nil(t, res)

		var se *domain.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageClone, se.Stage)
		assert.Contains(t, err.Error(), "authentication required")
	})

	t.Run("upsert", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		index := mocks.NewMockVectorIndex(ctrl)
		index.EXPECT().
			Upsert(gomock.Any(), "service-code", gomock.Len(3)).
			Return(0, errors.New("quota exceeded")).
			AnyTimes()

		cfg := testConfig()
		deps, err := NewDependencies(DependencyOptions{
			Config:       cfg,
			Logger:       utils.NewNopLogger(),
			Repos:        &fakeRepos{root: t.TempDir()},
			Packer:       &fakePacker{files: defaultFiles()},
			Embedder:     embedding.NewSparseProvider(),
			IndexManager: &singleIndexManager{index: index},
			Scraper:      firecrawl.MockScraper{},
		})
		require.NoError(t, err)
		orch, err := NewOrchestrator(deps)
		require.NoError(t, err)

		_, err = orch.Run(context.Background(), "https://github.com/acme/service", RunOptions{})

		var se *domain.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, StageUpsert, se.Stage)
	})

	t.Run("cancelled", func(t *testing.T) {
		h := newHarness(t, testConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.orch.Run(ctx, "https://github.com/acme/service", RunOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// singleIndexManager serves one existing index
type singleIndexManager struct {
	index domain.VectorIndex
}

func (m *singleIndexManager) ListIndexes(context.Context) ([]domain.IndexDescription, error) {
	return []domain.IndexDescription{{Name: "service-repo", Dimension: embedding.LocalDimension, Metric: "cosine", Ready: true}}, nil
}

func (m *singleIndexManager) CreateIndex(context.Context, domain.CreateIndexRequest) error {
	return nil
}

func (m *singleIndexManager) DescribeIndex(context.Context, string) (*domain.IndexDescription, error) {
	return &domain.IndexDescription{Name: "service-repo", Ready: true}, nil
}

func (m *singleIndexManager) Index(context.Context, string) (domain.VectorIndex, error) {
	return m.index, nil
}

func (m *singleIndexManager) Close() error { return nil }

func TestOrchestrator_Run_Incremental(t *testing.T) {
	cfg := testConfig()
	h := newHarness(t, cfg)
	ctx := context.Background()
	opts := RunOptions{Incremental: true, NoFirecrawl: true}
	const repoURL = "https://github.com/acme/service"

	first, err := h.orch.Run(ctx, repoURL, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, first.RepoVectorsUpserted)
	assert.Zero(t, first.SkippedUnchanged)
	assert.FileExists(t, filepath.Join(h.repos.root, "service", state.StateFileName))

	second, err := h.orch.Run(ctx, repoURL, opts)
	require.NoError(t, err)
	assert.Zero(t, second.RepoVectorsUpserted)
	assert.Equal(t, 3, second.SkippedUnchanged)
	assert.Equal(t, 3, h.namespaceCount(t, "service-repo", "service-code"))

	// one file changes, one disappears
	h.packer.files["main.go"] = "package main // rewritten"
	delete(h.packer.files, "README.md")

	third, err := h.orch.Run(ctx, repoURL, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, third.RepoVectorsUpserted)
	assert.Equal(t, 1, third.SkippedUnchanged)
	assert.Equal(t, 2, h.namespaceCount(t, "service-repo", "service-code"))

	st := state.NewManager(state.ManagerOptions{
		RepoDir:   filepath.Join(h.repos.root, "service"),
		Index:     "service-repo",
		Namespace: "service-code",
	})
	require.NoError(t, st.Load(ctx))
	total, _ := st.Stats()
	assert.Equal(t, 2, total)
	_, ok := st.Get("README.md")
	assert.False(t, ok)
	assert.Equal(t, "abc123", st.LastCommit())
}

func TestOrchestrator_RunManifestConfig(t *testing.T) {
	tests := []struct {
		name          string
		continueOnErr bool
		wantResults   int
		wantFailed    int
	}{
		{name: "stop on first error", continueOnErr: false, wantResults: 2, wantFailed: 1},
		{name: "continue on error", continueOnErr: true, wantResults: 3, wantFailed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			reportDir := t.TempDir()
			h.orch.deps.Repos = &failingRepos{next: h.repos, fail: "broken"}

			cfg := &manifest.Config{
				Repositories: []manifest.Repository{
					{URL: "https://github.com/acme/alpha"},
					{URL: "https://github.com/acme/broken"},
					{URL: "https://github.com/acme/gamma", NoDeepResearch: true},
				},
				Options: manifest.Options{ContinueOnError: tt.continueOnErr, ReportDir: reportDir},
			}

			report, err := h.orch.RunManifestConfig(context.Background(), cfg, RunOptions{NoFirecrawl: true})
			require.Error(t, err)
			require.NotNil(t, report)

			assert.Len(t, report.Results, tt.wantResults)
			assert.Equal(t, tt.wantFailed, report.Failed)
			assert.Equal(t, tt.wantResults-tt.wantFailed, report.Succeeded)
			assert.Contains(t, report.Results[1].Error, "broken")
			assert.FileExists(t, filepath.Join(reportDir, "alpha.json"))
			assert.Equal(t, 3*report.Succeeded, report.TotalVectorsUpserted)
		})
	}
}

func TestOrchestrator_RunManifest_File(t *testing.T) {
	h := newHarness(t, testConfig())
	path := filepath.Join(t.TempDir(), "repos.yaml")
	body := "repositories:\n  - url: https://github.com/acme/alpha\n    namespace: alpha-docs\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	report, err := h.orch.RunManifest(context.Background(), path, RunOptions{NoFirecrawl: true})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "alpha-docs", report.Results[0].Result.Namespace)

	_, err = h.orch.RunManifest(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), RunOptions{})
	assert.ErrorIs(t, err, manifest.ErrNotFound)
}

type failingRepos struct {
	next RepoSyncer
	fail string
}

func (f *failingRepos) CloneOrUpdate(ctx context.Context, repoURL, dir string) (*domain.RepoInfo, error) {
	if strings.Contains(repoURL, f.fail) {
		return nil, errors.New("repository broken is unreachable")
	}
	return f.next.CloneOrUpdate(ctx, repoURL, dir)
}

func TestQuerier_Query(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx := context.Background()

	_, err := h.orch.Run(ctx, "https://github.com/acme/service", RunOptions{NoFirecrawl: true})
	require.NoError(t, err)

	q := NewQuerier(h.deps)
	results, err := q.Query(ctx, "module acme.dev/service", QueryOptions{Repo: "service", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "go.mod", results[0].FilePath)
	assert.Equal(t, domain.SourceRepository, results[0].SourceType)
	assert.NotEmpty(t, results[0].Text)

	_, err = q.Query(ctx, "  ", QueryOptions{Repo: "service"})
	assert.Error(t, err)
	_, err = q.Query(ctx, "anything", QueryOptions{})
	assert.Error(t, err)
}

func TestPrintQueryResults(t *testing.T) {
	var buf bytes.Buffer
	PrintQueryResults(&buf, "retry", nil)
	assert.Equal(t, "No results found for query: 'retry'\n", buf.String())

	buf.Reset()
	PrintQueryResults(&buf, "retry", []QueryResult{
		{Score: 0.91234, Text: strings.Repeat("x", 600), FilePath: "retry.go"},
		{Score: 0.5, Text: "short", SourceURL: "https://docs.acme.dev"},
	})
	out := buf.String()
	assert.Contains(t, out, "Top 2 results for query: 'retry'")
	assert.Contains(t, out, "Result 1 (Score: 0.9123):")
	assert.Contains(t, out, "Text: "+strings.Repeat("x", 500)+"...\n")
	assert.Contains(t, out, "File: retry.go")
	assert.Contains(t, out, "Source: https://docs.acme.dev")
	assert.NotContains(t, out, "File: \n")
}

func TestRepoOptions(t *testing.T) {
	o := &Orchestrator{}
	base := RunOptions{SearchQuery: "base", NoFirecrawl: false, Namespace: "cli-ns"}

	got := o.repoOptions(manifest.Repository{SearchQuery: "grpc", NoFirecrawl: true, Namespace: "ns"}, manifest.Options{Incremental: true}, base)
	assert.Equal(t, RunOptions{SearchQuery: "grpc", NoFirecrawl: true, Incremental: true, Namespace: "ns"}, got)

	got = o.repoOptions(manifest.Repository{}, manifest.Options{}, base)
	assert.Equal(t, "base", got.SearchQuery)
	assert.Equal(t, "cli-ns", got.Namespace)
}
