package embedding

import (
	"context"
	"net/http"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/httpapi"
)

type customRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type customResponse struct {
	Embedding []float32 `json:"embedding"`
}

// CustomProvider posts one text at a time to a self-hosted endpoint
// answering {"text", "model"} with {"embedding"}.
type CustomProvider struct {
	client    *httpapi.Client
	model     string
	dimension int
}

// NewCustomProvider creates a CustomProvider. An empty API key sends no
// Authorization header.
func NewCustomProvider(cfg ProviderConfig, model string) (*CustomProvider, error) {
	if cfg.BaseURL == "" {
		return nil, domain.NewValidationError("embedding.base_url", "required for the custom provider")
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	} else {
		cfg.Logger.Warn().Str("model", model).Msg("No API key provided for embedding endpoint, assuming it does not require authentication")
	}
	return &CustomProvider{
		client: httpapi.New(httpapi.Options{
			Service:    "embedding",
			BaseURL:    cfg.BaseURL,
			Headers:    headers,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
			Guard:      guardFor(cfg, "embedding"),
		}),
		model:     model,
		dimension: DimensionFor(model, cfg.Dimension),
	}, nil
}

func (p *CustomProvider) Name() string   { return p.model }
func (p *CustomProvider) Dimension() int { return p.dimension }

func (p *CustomProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp customResponse
	if err := p.client.Do(ctx, http.MethodPost, "", customRequest{Text: text, Model: p.model}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, domain.ErrEmptyEmbedding
	}
	return resp.Embedding, nil
}

func (p *CustomProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
