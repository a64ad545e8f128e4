package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
)

// Environment variable names
const (
	EnvPineconeAPIKey      = "PINECONE_API_KEY"
	EnvPineconeEnvironment = "PINECONE_ENVIRONMENT"
	EnvFirecrawlAPIKey     = "FIRECRAWL_API_KEY"
	EnvEmbeddingAPIKey     = "EMBEDDING_API_KEY"
	EnvGitHubToken         = "GITHUB_TOKEN"
)

// MockKeyPrefix marks a Pinecone API key that selects the in-memory store
const MockKeyPrefix = "mock_"

// Env holds the secrets read from the environment
type Env struct {
	PineconeAPIKey      string
	PineconeEnvironment string
	FirecrawlAPIKey     string
	EmbeddingAPIKey     string
	GitHubToken         string
}

// LoadDotEnv loads variables from the given .env files, or ./.env when
// none are given. Variables already set in the process are kept and
// missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ReadEnv reads the known variables from the process environment
func ReadEnv() Env {
	return Env{
		PineconeAPIKey:      strings.TrimSpace(os.Getenv(EnvPineconeAPIKey)),
		PineconeEnvironment: strings.TrimSpace(os.Getenv(EnvPineconeEnvironment)),
		FirecrawlAPIKey:     strings.TrimSpace(os.Getenv(EnvFirecrawlAPIKey)),
		EmbeddingAPIKey:     strings.TrimSpace(os.Getenv(EnvEmbeddingAPIKey)),
		GitHubToken:         strings.TrimSpace(os.Getenv(EnvGitHubToken)),
	}
}

// IsMock reports whether the Pinecone key requests mock mode
func (e Env) IsMock() bool {
	return strings.HasPrefix(e.PineconeAPIKey, MockKeyPrefix)
}

// EmbeddingKey returns the embedding API key, falling back to the
// Pinecone key for models hosted by Pinecone.
func (e Env) EmbeddingKey() string {
	if e.EmbeddingAPIKey != "" {
		return e.EmbeddingAPIKey
	}
	return e.PineconeAPIKey
}

// Missing returns the names of required variables that are unset.
// Nothing is required in mock mode. The Pinecone variables are not
// required for the local vector store, and the Firecrawl key only when
// the Firecrawl API backend will be used.
func (e Env) Missing(cfg *Config, mock, firecrawlEnabled bool) []string {
	if mock {
		return nil
	}
	var missing []string
	if !cfg.UseLocalVectorStore() {
		if e.PineconeAPIKey == "" {
			missing = append(missing, EnvPineconeAPIKey)
		}
		if e.PineconeEnvironment == "" {
			missing = append(missing, EnvPineconeEnvironment)
		}
	}
	if firecrawlEnabled && cfg.Firecrawl.Backend != ScrapeBackendLocal && e.FirecrawlAPIKey == "" {
		missing = append(missing, EnvFirecrawlAPIKey)
	}
	return missing
}

// Validate returns a ValidationError listing every missing variable
func (e Env) Validate(cfg *Config, mock, firecrawlEnabled bool) error {
	missing := e.Missing(cfg, mock, firecrawlEnabled)
	if len(missing) == 0 {
		return nil
	}
	return domain.NewValidationError(strings.Join(missing, ", "), "missing required environment variables")
}
