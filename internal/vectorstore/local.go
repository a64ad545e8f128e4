package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// MockDimension is the dimension of indexes the local store creates on
// demand.
const MockDimension = 384

// Each index is a marker collection holding one config document; each
// namespace of an index is its own collection.
const (
	indexPrefix     = "index:"
	namespacePrefix = "ns:"
	configDocID     = "config"

	metaDimension = "dimension"
	metaMetric    = "metric"

	// lists the document metadata keys whose values are JSON encoded
	jsonKeysField = "_json_keys"
)

var (
	_ domain.IndexManager = (*LocalStore)(nil)
	_ domain.VectorIndex  = (*LocalIndex)(nil)
)

// LocalStore is an embedded vector store backed by chromem-go. It serves
// mock mode and the local backend.
type LocalStore struct {
	db     *chromem.DB
	logger *utils.Logger
	mu     sync.Mutex
}

// NewMemoryStore creates an in-memory LocalStore
func NewMemoryStore(logger *utils.Logger) *LocalStore {
	return newLocalStore(chromem.NewDB(), logger)
}

// NewPersistentStore opens a LocalStore persisted under path
func NewPersistentStore(path string, compress bool, logger *utils.Logger) (*LocalStore, error) {
	path = utils.ExpandPath(path)
	if err := utils.EnsureDir(path); err != nil {
		return nil, fmt.Errorf("creating vector directory %s: %w", path, err)
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("opening local vector store: %w", err)
	}
	return newLocalStore(db, logger), nil
}

func newLocalStore(db *chromem.DB, logger *utils.Logger) *LocalStore {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &LocalStore{db: db, logger: logger.WithComponent("local-vectors")}
}

// the embedding func is never called: documents and queries carry vectors
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("local store: %w", domain.ErrNotSupported)
}

func indexCollectionName(name string) string {
	return indexPrefix + name
}

func namespaceCollectionName(index, namespace string) string {
	return namespacePrefix + index + ":" + namespace
}

// ListIndexes lists the indexes in the store
func (s *LocalStore) ListIndexes(ctx context.Context) ([]domain.IndexDescription, error) {
	var out []domain.IndexDescription
	for name := range s.db.ListCollections() {
		if !strings.HasPrefix(name, indexPrefix) {
			continue
		}
		d, err := s.DescribeIndex(ctx, strings.TrimPrefix(name, indexPrefix))
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateIndex registers an index. Creating an existing index is a no-op.
func (s *LocalStore) CreateIndex(ctx context.Context, req domain.CreateIndexRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createIndexLocked(ctx, req.Name, req.Dimension, req.Metric)
}

func (s *LocalStore) createIndexLocked(ctx context.Context, name string, dimension int, metric string) error {
	if s.db.GetCollection(indexCollectionName(name), noEmbedding) != nil {
		return nil
	}
	s.logger.Info().Str("index", name).Int("dimension", dimension).Msg("Creating local index")
	c, err := s.db.CreateCollection(indexCollectionName(name), nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("creating local index %s: %w", name, err)
	}
	err = c.AddDocument(ctx, chromem.Document{
		ID: configDocID,
		Metadata: map[string]string{
			metaDimension: strconv.Itoa(dimension),
			metaMetric:    metric,
		},
		Embedding: []float32{1},
	})
	if err != nil {
		return fmt.Errorf("creating local index %s: %w", name, err)
	}
	return nil
}

// DescribeIndex returns ErrNotFound for unknown indexes
func (s *LocalStore) DescribeIndex(ctx context.Context, name string) (*domain.IndexDescription, error) {
	c := s.db.GetCollection(indexCollectionName(name), noEmbedding)
	if c == nil {
		return nil, fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
	}
	doc, err := c.GetByID(ctx, configDocID)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", name, err)
	}
	dim, _ := strconv.Atoi(doc.Metadata[metaDimension])
	return &domain.IndexDescription{
		Name:      name,
		Dimension: dim,
		Metric:    doc.Metadata[metaMetric],
		Ready:     true,
	}, nil
}

// Index returns a handle on an index, creating it with MockDimension
// and cosine metric when it does not exist.
func (s *LocalStore) Index(ctx context.Context, name string) (domain.VectorIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db.GetCollection(indexCollectionName(name), noEmbedding) == nil {
		s.logger.Info().Str("index", name).Msg("Creating mock index on demand")
		if err := s.createIndexLocked(ctx, name, MockDimension, "cosine"); err != nil {
			return nil, err
		}
	}
	return &LocalIndex{store: s, name: name}, nil
}

// Close is a no-op; persistent stores write through on every change
func (s *LocalStore) Close() error {
	return nil
}

// LocalIndex is one index in a LocalStore
type LocalIndex struct {
	store *LocalStore
	name  string
}

func (i *LocalIndex) collection(namespace string, create bool) (*chromem.Collection, error) {
	name := namespaceCollectionName(i.name, namespace)
	if !create {
		return i.store.db.GetCollection(name, noEmbedding), nil
	}
	return i.store.db.GetOrCreateCollection(name, nil, noEmbedding)
}

// Upsert stores vectors, replacing any with the same id
func (i *LocalIndex) Upsert(ctx context.Context, namespace string, vectors []domain.Vector) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	c, err := i.collection(namespace, true)
	if err != nil {
		return 0, fmt.Errorf("opening namespace %s: %w", namespace, err)
	}

	docs := make([]chromem.Document, len(vectors))
	for n, v := range vectors {
		meta, err := encodeMetadata(v.Metadata)
		if err != nil {
			return 0, fmt.Errorf("vector %s: %w", v.ID, err)
		}
		docs[n] = chromem.Document{
			ID:        v.ID,
			Metadata:  meta,
			Embedding: storableVector(v.Values),
			Content:   metadataText(v.Metadata),
		}
	}
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return 0, fmt.Errorf("adding documents: %w", err)
	}
	return len(docs), nil
}

// Query returns up to topK matches ordered by cosine similarity
func (i *LocalIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, includeMetadata bool) ([]domain.Match, error) {
	c, err := i.collection(namespace, false)
	if err != nil {
		return nil, err
	}
	if c == nil || c.Count() == 0 || topK <= 0 {
		return []domain.Match{}, nil
	}
	topK = min(topK, c.Count())

	results, err := c.QueryEmbedding(ctx, storableVector(vector), topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying namespace %s: %w", namespace, err)
	}
	out := make([]domain.Match, len(results))
	for n, r := range results {
		out[n] = domain.Match{ID: r.ID, Score: r.Similarity}
		if includeMetadata {
			out[n].Metadata = decodeMetadata(r.Metadata)
		}
	}
	return out, nil
}

// Delete removes vectors by id
func (i *LocalIndex) Delete(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c, err := i.collection(namespace, false)
	if err != nil || c == nil {
		return err
	}
	return c.Delete(ctx, nil, nil, ids...)
}

// Stats counts vectors per namespace
func (i *LocalIndex) Stats(ctx context.Context) (*domain.IndexStats, error) {
	desc, err := i.store.DescribeIndex(ctx, i.name)
	if err != nil {
		return nil, err
	}
	stats := &domain.IndexStats{Dimension: desc.Dimension, Namespaces: map[string]int{}}
	prefix := namespaceCollectionName(i.name, "")
	for name, c := range i.store.db.ListCollections() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n := c.Count()
		stats.Namespaces[strings.TrimPrefix(name, prefix)] = n
		stats.TotalVectorCount += n
	}
	return stats, nil
}

// storableVector copies v, replacing a zero vector with the uniform unit
// vector so cosine similarity stays defined.
func storableVector(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for n, f := range v {
		out[n] = f
		sum += float64(f) * float64(f)
	}
	if sum > 0 || len(out) == 0 {
		return out
	}
	u := float32(1 / math.Sqrt(float64(len(out))))
	for n := range out {
		out[n] = u
	}
	return out
}

// encodeMetadata flattens metadata to strings, JSON encoding any
// non-string value and recording its key.
func encodeMetadata(meta map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(meta)+1)
	var jsonKeys []string
	for k, v := range meta {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata %q: %w", k, err)
		}
		out[k] = string(b)
		jsonKeys = append(jsonKeys, k)
	}
	if len(jsonKeys) > 0 {
		sort.Strings(jsonKeys)
		out[jsonKeysField] = strings.Join(jsonKeys, ",")
	}
	return out, nil
}

func decodeMetadata(meta map[string]string) map[string]any {
	jsonKeys := map[string]bool{}
	if keys := meta[jsonKeysField]; keys != "" {
		for _, k := range strings.Split(keys, ",") {
			jsonKeys[k] = true
		}
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if k == jsonKeysField {
			continue
		}
		if jsonKeys[k] {
			var decoded any
			if json.Unmarshal([]byte(v), &decoded) == nil {
				out[k] = decoded
				continue
			}
		}
		out[k] = v
	}
	return out
}

func metadataText(meta map[string]any) string {
	s, _ := meta[MetaText].(string)
	return s
}
