// Package embedding turns chunk text into dense vectors.
package embedding

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/resilience"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// Model names understood by NewProvider
const (
	ModelE5Large      = "multilingual-e5-large"
	ModelLlamaEmbedV2 = "llama-text-embed-v2"
	ModelSparseV0     = "pinecone-sparse-english-v0"
	ModelMock         = "mock_embedding_model"

	openAIPrefix = "openai:"
	ollamaPrefix = "ollama:"
)

// Provider names for embedding.provider
const (
	ProviderAuto     = "auto"
	ProviderPinecone = "pinecone"
	ProviderCustom   = "custom"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderLocal    = "local"
)

// LocalDimension is the vector length of the sparse and mock models
const LocalDimension = 384

const (
	defaultPineconeURL = "https://api.pinecone.io"
	defaultOpenAIURL   = "https://api.openai.com/v1"
	defaultOllamaURL   = "http://localhost:11434"
)

var knownDimensions = map[string]int{
	ModelE5Large:             1024,
	ModelLlamaEmbedV2:        1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
}

// ProviderConfig holds everything needed to build a provider
type ProviderConfig struct {
	Model      string
	Provider   string // auto, pinecone, custom, openai, ollama or local
	APIKey     string
	BaseURL    string
	APIVersion string
	Dimension  int // used when the model's dimension is unknown
	Timeout    time.Duration
	HTTPClient *http.Client
	Guard      *resilience.Guard
	Logger     *utils.Logger
}

// NewProvider returns the embedder for cfg.Model
func NewProvider(cfg ProviderConfig) (domain.Embedder, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("%w: embedding model not specified", domain.ErrUnsupportedModel)
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.NewNopLogger()
	}
	cfg.Logger.Info().Str("model", model).Msg("Creating embedding function")

	provider := strings.ToLower(cfg.Provider)
	if provider == "" || provider == ProviderAuto {
		provider = detectProvider(model, cfg.BaseURL)
	}

	switch provider {
	case ProviderLocal:
		switch model {
		case ModelSparseV0:
			return NewSparseProvider(), nil
		case ModelMock:
			return NewMockProvider(), nil
		}
	case ProviderPinecone:
		return NewPineconeProvider(cfg, model)
	case ProviderCustom:
		return NewCustomProvider(cfg, model)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg, strings.TrimPrefix(model, openAIPrefix))
	case ProviderOllama:
		return NewOllamaProvider(cfg, strings.TrimPrefix(model, ollamaPrefix))
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedModel, model)
}

func detectProvider(model, baseURL string) string {
	switch {
	case model == ModelSparseV0 || model == ModelMock:
		return ProviderLocal
	case strings.HasPrefix(model, openAIPrefix):
		return ProviderOpenAI
	case strings.HasPrefix(model, ollamaPrefix):
		return ProviderOllama
	case model == ModelE5Large || model == ModelLlamaEmbedV2:
		if baseURL != "" {
			return ProviderCustom
		}
		return ProviderPinecone
	}
	return ""
}

// DimensionFor returns the vector length of a model, or fallback when
// the model is not known.
func DimensionFor(model string, fallback int) int {
	switch model {
	case ModelSparseV0, ModelMock:
		return LocalDimension
	}
	name := model
	if i := strings.Index(model, ":"); i >= 0 {
		name = model[i+1:]
	}
	if d, ok := knownDimensions[name]; ok {
		return d
	}
	return fallback
}

func guardFor(cfg ProviderConfig, service string) *resilience.Guard {
	if cfg.Guard != nil {
		return cfg.Guard
	}
	return resilience.NewGuard(service, resilience.DefaultOptions(), cfg.Logger)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// checkBatch verifies a provider returned one vector per input
func checkBatch(service string, want int, got [][]float32) error {
	if len(got) != want {
		return domain.NewAPIError(service, 0, fmt.Sprintf("expected %d embeddings, got %d", want, len(got)), nil)
	}
	for _, v := range got {
		if len(v) == 0 {
			return fmt.Errorf("%s: %w", service, domain.ErrEmptyEmbedding)
		}
	}
	return nil
}
