package embedding

import (
	"context"
	"net/http"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/httpapi"
)

type pineconeEmbedRequest struct {
	Model      string              `json:"model"`
	Inputs     []pineconeEmbedText `json:"inputs"`
	Parameters pineconeEmbedParams `json:"parameters"`
}

type pineconeEmbedText struct {
	Text string `json:"text"`
}

type pineconeEmbedParams struct {
	InputType string `json:"input_type"`
	Truncate  string `json:"truncate"`
}

type pineconeEmbedResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Values []float32 `json:"values"`
	} `json:"data"`
}

// PineconeProvider embeds text with the Pinecone Inference API
type PineconeProvider struct {
	client    *httpapi.Client
	model     string
	dimension int
	inputType string
}

// NewPineconeProvider creates a PineconeProvider
func NewPineconeProvider(cfg ProviderConfig, model string) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrMissingAPIKey
	}
	headers := map[string]string{"Api-Key": cfg.APIKey}
	if cfg.APIVersion != "" {
		headers["X-Pinecone-API-Version"] = cfg.APIVersion
	}
	return &PineconeProvider{
		client: httpapi.New(httpapi.Options{
			Service:    "pinecone-inference",
			BaseURL:    orDefault(cfg.BaseURL, defaultPineconeURL),
			Headers:    headers,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
			Guard:      guardFor(cfg, "pinecone-inference"),
		}),
		model:     model,
		dimension: DimensionFor(model, cfg.Dimension),
		inputType: "passage",
	}, nil
}

// ForQueries returns a copy that embeds search queries instead of passages
func (p *PineconeProvider) ForQueries() *PineconeProvider {
	cp := *p
	cp.inputType = "query"
	return &cp
}

func (p *PineconeProvider) Name() string   { return p.model }
func (p *PineconeProvider) Dimension() int { return p.dimension }

func (p *PineconeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *PineconeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := pineconeEmbedRequest{
		Model:      p.model,
		Inputs:     make([]pineconeEmbedText, len(texts)),
		Parameters: pineconeEmbedParams{InputType: p.inputType, Truncate: "END"},
	}
	for i, t := range texts {
		req.Inputs[i] = pineconeEmbedText{Text: t}
	}

	var resp pineconeEmbedResponse
	if err := p.client.Do(ctx, http.MethodPost, "/embed", req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Values
	}
	if err := checkBatch(p.client.Service(), len(texts), out); err != nil {
		return nil, err
	}
	return out, nil
}
