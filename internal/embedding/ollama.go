package embedding

import (
	"context"
	"net/http"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/httpapi"
)

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaProvider uses a local Ollama server's /api/embed endpoint
type OllamaProvider struct {
	client    *httpapi.Client
	model     string
	dimension int
}

// NewOllamaProvider creates an OllamaProvider. No API key is needed.
func NewOllamaProvider(cfg ProviderConfig, model string) (*OllamaProvider, error) {
	return &OllamaProvider{
		client: httpapi.New(httpapi.Options{
			Service:    "ollama",
			BaseURL:    orDefault(cfg.BaseURL, defaultOllamaURL),
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
			Guard:      guardFor(cfg, "ollama"),
		}),
		model:     model,
		dimension: DimensionFor(model, cfg.Dimension),
	}, nil
}

func (p *OllamaProvider) Name() string   { return ollamaPrefix + p.model }
func (p *OllamaProvider) Dimension() int { return p.dimension }

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaResponse
	if err := p.client.Do(ctx, http.MethodPost, "/api/embed", ollamaRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if err := checkBatch("ollama", len(texts), resp.Embeddings); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}
