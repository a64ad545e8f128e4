package manifest

import (
	"fmt"
	"strings"
)

// Config represents the complete manifest configuration
type Config struct {
	Repositories []Repository `yaml:"repositories" json:"repositories"`
	Options      Options      `yaml:"options" json:"options"`
}

// Repository is one repository to ingest with its per-run flags
type Repository struct {
	URL            string `yaml:"url" json:"url"`
	SearchQuery    string `yaml:"search_query,omitempty" json:"search_query,omitempty"`
	NoFirecrawl    bool   `yaml:"no_firecrawl,omitempty" json:"no_firecrawl,omitempty"`
	NoDeepResearch bool   `yaml:"no_deep_research,omitempty" json:"no_deep_research,omitempty"`
	Namespace      string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// Options represents global manifest options
type Options struct {
	ContinueOnError bool `yaml:"continue_on_error" json:"continue_on_error"`
	Incremental     bool `yaml:"incremental,omitempty" json:"incremental,omitempty"`
	// ReportDir receives one report per repository when set
	ReportDir string `yaml:"report_dir,omitempty" json:"report_dir,omitempty"`
}

// Validate validates the manifest configuration
func (c *Config) Validate() error {
	if len(c.Repositories) == 0 {
		return ErrEmpty
	}
	seen := make(map[string]int, len(c.Repositories))
	for i, repo := range c.Repositories {
		if repo.URL == "" {
			return fmt.Errorf("repository %d: %w", i, ErrMissingURL)
		}
		key := normalizeURL(repo.URL)
		if j, ok := seen[key]; ok {
			return fmt.Errorf("repository %d (same as %d): %w: %s", i, j, ErrDuplicate, repo.URL)
		}
		seen[key] = i
	}
	return nil
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(strings.ToLower(u))
	u = strings.TrimSuffix(u, "/")
	return strings.TrimSuffix(u, ".git")
}
