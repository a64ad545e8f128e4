package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "manifest.yaml"))

	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_YAML(t *testing.T) {
	yamlContent := `
repositories:
  - url: https://github.com/org/service
    search_query: "  grpc gateway "
  - url: git@github.com:org/tools.git
    no_firecrawl: true
    namespace: tools-docs
options:
  continue_on_error: true
  incremental: true
`
	path := filepath.Join(t.TempDir(), "repos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Repositories, 2)
	assert.Equal(t, "https://github.com/org/service", cfg.Repositories[0].URL)
	assert.Equal(t, "grpc gateway", cfg.Repositories[0].SearchQuery)
	assert.False(t, cfg.Repositories[0].NoFirecrawl)
	assert.True(t, cfg.Repositories[1].NoFirecrawl)
	assert.Equal(t, "tools-docs", cfg.Repositories[1].Namespace)
	assert.True(t, cfg.Options.ContinueOnError)
	assert.True(t, cfg.Options.Incremental)
}

func TestLoad_JSON(t *testing.T) {
	jsonContent := `{
  "repositories": [{"url": "https://github.com/org/a", "no_deep_research": true}],
  "options": {"continue_on_error": false, "report_dir": "reports"}
}`
	path := filepath.Join(t.TempDir(), "repos.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonContent), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Repositories, 1)
	assert.True(t, cfg.Repositories[0].NoDeepResearch)
	assert.Equal(t, "reports", cfg.Options.ReportDir)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		file    string
		wantErr error
	}{
		{"unsupported extension", "repositories: []", "repos.toml", ErrUnknownFormat},
		{"no extension", "repositories: []", "repos", ErrUnknownFormat},
		{"invalid yaml", "repositories: [\n  - url", "repos.yaml", ErrSyntax},
		{"invalid json", "{", "repos.json", ErrSyntax},
		{"unknown yaml key", "repositories:\n  - url: https://github.com/org/a\n    serch_query: x\n", "repos.yaml", ErrSyntax},
		{"unknown json key", `{"repositories": [{"url": "https://github.com/org/a"}], "option": {}}`, "repos.json", ErrSyntax},
		{"no repositories", "options:\n  continue_on_error: true\n", "repos.yml", ErrEmpty},
		{"empty url", "repositories:\n  - url: \"  \"\n", "repos.yaml", ErrMissingURL},
		{
			name:    "duplicate url",
			data:    "repositories:\n  - url: https://github.com/org/a\n  - url: https://github.com/Org/a.git\n",
			file:    "repos.yaml",
			wantErr: ErrDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.data), tt.file)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_UppercaseExt(t *testing.T) {
	cfg, err := Parse([]byte("repositories:\n  - url: https://github.com/org/a\n"), "/etc/REPOS.YAML")
	require.NoError(t, err)
	assert.Len(t, cfg.Repositories, 1)
}
