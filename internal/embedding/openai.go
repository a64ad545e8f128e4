package embedding

import (
	"context"
	"net/http"
	"sort"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/httpapi"
)

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// OpenAIProvider uses an OpenAI-compatible /embeddings endpoint
type OpenAIProvider struct {
	client    *httpapi.Client
	model     string
	dimension int
}

// NewOpenAIProvider creates an OpenAIProvider
func NewOpenAIProvider(cfg ProviderConfig, model string) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrMissingAPIKey
	}
	return &OpenAIProvider{
		client: httpapi.New(httpapi.Options{
			Service:    "openai",
			BaseURL:    orDefault(cfg.BaseURL, defaultOpenAIURL),
			Headers:    map[string]string{"Authorization": "Bearer " + cfg.APIKey},
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
			Guard:      guardFor(cfg, "openai"),
		}),
		model:     model,
		dimension: DimensionFor(model, cfg.Dimension),
	}, nil
}

func (p *OpenAIProvider) Name() string   { return openAIPrefix + p.model }
func (p *OpenAIProvider) Dimension() int { return p.dimension }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openAIResponse
	if err := p.client.Do(ctx, http.MethodPost, "/embeddings", openAIRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, err
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	if err := checkBatch("openai", len(texts), out); err != nil {
		return nil, err
	}
	return out, nil
}
