package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/httpapi"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/resilience"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

const (
	DefaultControlURL = "https://api.pinecone.io"
	DefaultAPIVersion = "2025-01"
)

var (
	_ domain.IndexManager = (*PineconeManager)(nil)
	_ domain.VectorIndex  = (*PineconeIndex)(nil)
)

// PineconeOptions configures the Pinecone REST client
type PineconeOptions struct {
	APIKey     string
	ControlURL string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
	Guard      *resilience.Guard
	Logger     *utils.Logger
}

// PineconeManager talks to the Pinecone control plane
type PineconeManager struct {
	control *httpapi.Client
	logger  *utils.Logger

	mu      sync.Mutex
	indexes map[string]*PineconeIndex
}

// NewPineconeManager creates a PineconeManager
func NewPineconeManager(opts PineconeOptions) (*PineconeManager, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("pinecone: %w", domain.ErrMissingAPIKey)
	}
	if opts.ControlURL == "" {
		opts.ControlURL = DefaultControlURL
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	logger := opts.Logger.WithComponent("pinecone")
	guard := opts.Guard
	if guard == nil {
		guard = resilience.NewGuard("pinecone", resilience.DefaultOptions(), logger)
	}

	logger.Info().Msg("Initializing Pinecone client")
	return &PineconeManager{
		control: httpapi.New(httpapi.Options{
			Service: "pinecone",
			BaseURL: opts.ControlURL,
			Headers: map[string]string{
				"Api-Key":                opts.APIKey,
				"X-Pinecone-API-Version": opts.APIVersion,
			},
			Timeout:    opts.Timeout,
			HTTPClient: opts.HTTPClient,
			Guard:      guard,
		}),
		logger:  logger,
		indexes: make(map[string]*PineconeIndex),
	}, nil
}

type indexModel struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

func (m indexModel) description() domain.IndexDescription {
	return domain.IndexDescription{
		Name:      m.Name,
		Dimension: m.Dimension,
		Metric:    m.Metric,
		Host:      m.Host,
		Ready:     m.Status.Ready,
	}
}

type createIndexBody struct {
	Name      string     `json:"name"`
	Dimension int        `json:"dimension"`
	Metric    string     `json:"metric"`
	Spec      createSpec `json:"spec"`
}

type createSpec struct {
	Serverless serverlessSpec `json:"serverless"`
}

type serverlessSpec struct {
	Cloud  string `json:"cloud"`
	Region string `json:"region"`
}

// ListIndexes returns every index in the project
func (m *PineconeManager) ListIndexes(ctx context.Context) ([]domain.IndexDescription, error) {
	var resp struct {
		Indexes []indexModel `json:"indexes"`
	}
	if err := m.control.Do(ctx, http.MethodGet, "/indexes", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}
	out := make([]domain.IndexDescription, len(resp.Indexes))
	for i, idx := range resp.Indexes {
		out[i] = idx.description()
	}
	return out, nil
}

// CreateIndex creates a serverless index
func (m *PineconeManager) CreateIndex(ctx context.Context, req domain.CreateIndexRequest) error {
	body := createIndexBody{
		Name:      req.Name,
		Dimension: req.Dimension,
		Metric:    req.Metric,
		Spec:      createSpec{Serverless: serverlessSpec{Cloud: req.Cloud, Region: req.Region}},
	}
	if err := m.control.Do(ctx, http.MethodPost, "/indexes", body, nil); err != nil {
		return fmt.Errorf("failed to create index %s: %w", req.Name, err)
	}
	return nil
}

// DescribeIndex returns an index's configuration and readiness
func (m *PineconeManager) DescribeIndex(ctx context.Context, name string) (*domain.IndexDescription, error) {
	var resp indexModel
	if err := m.control.Do(ctx, http.MethodGet, "/indexes/"+url.PathEscape(name), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", name, err)
	}
	d := resp.description()
	return &d, nil
}

// Index returns a data plane handle, resolving the index host once
func (m *PineconeManager) Index(ctx context.Context, name string) (domain.VectorIndex, error) {
	m.mu.Lock()
	idx, ok := m.indexes[name]
	m.mu.Unlock()
	if ok {
		return idx, nil
	}

	desc, err := m.DescribeIndex(ctx, name)
	if err != nil {
		return nil, err
	}
	if desc.Host == "" {
		return nil, fmt.Errorf("index %s has no host yet: %w", name, domain.ErrIndexNotReady)
	}

	idx = &PineconeIndex{
		name:   name,
		data:   m.control.WithBaseURL(hostURL(desc.Host)),
		logger: m.logger,
	}
	m.mu.Lock()
	m.indexes[name] = idx
	m.mu.Unlock()
	return idx, nil
}

// Close is a no-op for the REST client
func (m *PineconeManager) Close() error {
	return nil
}

func hostURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

// PineconeIndex talks to one index's data plane host
type PineconeIndex struct {
	name   string
	data   *httpapi.Client
	logger *utils.Logger
}

type upsertBody struct {
	Vectors   []domain.Vector `json:"vectors"`
	Namespace string          `json:"namespace"`
}

type queryBody struct {
	Namespace       string    `json:"namespace"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
}

type deleteBody struct {
	IDs       []string `json:"ids"`
	Namespace string   `json:"namespace"`
}

type statsResponse struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

// Upsert writes vectors and returns Pinecone's upserted count
func (i *PineconeIndex) Upsert(ctx context.Context, namespace string, vectors []domain.Vector) (int, error) {
	var resp struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	if err := i.data.Do(ctx, http.MethodPost, "/vectors/upsert", upsertBody{Vectors: vectors, Namespace: namespace}, &resp); err != nil {
		return 0, err
	}
	return resp.UpsertedCount, nil
}

// Query returns the topK matches, with metadata when includeMetadata is set
func (i *PineconeIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]domain.Match, error) {
	var resp struct {
		Matches []domain.Match `json:"matches"`
	}
	body := queryBody{Namespace: namespace, Vector: vector, TopK: topK, IncludeMetadata: includeMetadata}
	if err := i.data.Do(ctx, http.MethodPost, "/query", body, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// Delete removes vectors by id
func (i *PineconeIndex) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := i.data.Do(ctx, http.MethodPost, "/vectors/delete", deleteBody{IDs: ids, Namespace: namespace}, nil)
	if errors.Is(err, domain.ErrNotFound) {
		// deleting from a namespace that does not exist yet
		return nil
	}
	return err
}

// Stats describes the index
func (i *PineconeIndex) Stats(ctx context.Context) (*domain.IndexStats, error) {
	var resp statsResponse
	if err := i.data.Do(ctx, http.MethodPost, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return nil, err
	}
	stats := &domain.IndexStats{
		Dimension:        resp.Dimension,
		TotalVectorCount: resp.TotalVectorCount,
		Namespaces:       make(map[string]int, len(resp.Namespaces)),
	}
	for ns, s := range resp.Namespaces {
		stats.Namespaces[ns] = s.VectorCount
	}
	return stats, nil
}
