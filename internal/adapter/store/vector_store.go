package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const defaultK = 4

// BoltVectorStore implements VectorStore using BoltDB for persistence.
// Uses brute-force search for simplicity; can be replaced with HNSW for larger indexes.
type BoltVectorStore struct {
	db       *bbolt.DB
	embedder port.Embedder
	logger   *zap.Logger
	rebuild  bool

	mu     sync.RWMutex
	schema SchemaInfo
	// In-memory cache for fast search
	entries map[string]entry
}

var _ port.VectorStore = (*BoltVectorStore)(nil)

type entry struct {
	vector   []float32
	content  string
	metadata map[string]string
}

type storedRecord struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Vector   []float32         `json:"vector"`
}

// Option configures a BoltVectorStore.
type Option func(*BoltVectorStore)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *BoltVectorStore) { s.logger = l }
}

// WithRebuild discards any existing index content on open.
func WithRebuild() Option {
	return func(s *BoltVectorStore) { s.rebuild = true }
}

// Open opens the index at path. An index built with a different embedding
// model or dimension fails with domain.ErrIndexMismatch unless WithRebuild
// is given.
func Open(path string, embedder port.Embedder, opts ...Option) (*BoltVectorStore, error) {
	s := &BoltVectorStore{
		embedder: embedder,
		logger:   zap.NewNop(),
		entries:  make(map[string]entry),
	}
	for _, o := range opts {
		o(s)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s.db = db

	if s.rebuild {
		if err := s.Clear(); err != nil {
			db.Close()
			return nil, err
		}
	}

	info, err := getSchemaInfo(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := checkSchema(info, embedder.ModelName(), embedder.Dimension()); err != nil {
		db.Close()
		return nil, err
	}
	s.schema = *info

	// Load existing vectors into memory
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	s.logger.Debug("local index opened",
		zap.String("path", path),
		zap.Int("vectors", len(s.entries)),
		zap.String("model", embedder.ModelName()),
	)
	return s, nil
}

func (s *BoltVectorStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				s.logger.Warn("skipping corrupted record", zap.ByteString("id", k), zap.Error(err))
				return nil
			}
			s.entries[string(k)] = entry{vector: rec.Vector, content: rec.Content, metadata: rec.Metadata}
			return nil
		})
	})
}

// AddTexts embeds texts in one call and upserts them under "source#section" ids.
func (s *BoltVectorStore) AddTexts(ctx context.Context, texts []string, metadatas []map[string]string) ([]string, error) {
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d metadatas", domain.ErrMetadataMismatch, len(texts), len(metadatas))
	}
	if len(texts) == 0 {
		return []string{}, nil
	}

	ids := make([]string, len(texts))
	var sections domain.SectionCounter
	seen := make(map[string]int, len(texts))
	for i := range texts {
		source := domain.ResolveSource(metadatas, i)
		id := domain.RecordID(source, sections.Next(source))
		if j, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s at texts %d and %d; group texts by source", domain.ErrDuplicateID, id, j, i)
		}
		seen[id] = i
		ids[i] = id
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbedding, len(vectors), len(texts))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dimension := s.schema.Dimension
	if dimension == 0 {
		dimension = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, index has %d", domain.ErrIndexMismatch, i, len(v), dimension)
		}
	}

	pending := make(map[string]entry, len(texts))
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for i, text := range texts {
			id := ids[i]

			meta := copyMeta(metadatas, i)
			data, err := json.Marshal(storedRecord{Content: text, Metadata: meta, Vector: vectors[i]})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
			pending[id] = entry{vector: vectors[i], content: text, metadata: meta}
		}

		if s.schema.Version == 0 || s.schema.Dimension == 0 {
			return putSchemaInfo(tx, &SchemaInfo{
				Version:   CurrentSchemaVersion,
				Model:     s.embedder.ModelName(),
				Dimension: dimension,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write vectors: %w", err)
	}

	// Update in-memory cache only after the transaction committed
	for id, e := range pending {
		s.entries[id] = e
	}
	s.schema = SchemaInfo{Version: CurrentSchemaVersion, Model: s.embedder.ModelName(), Dimension: dimension}

	return ids, nil
}

// SimilaritySearch returns the k documents closest to query.
func (s *BoltVectorStore) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Document, error) {
	scored, err := s.SimilaritySearchWithScore(ctx, query, k)
	if err != nil {
		return []domain.Document{}, err
	}
	docs := make([]domain.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}

// SimilaritySearchWithScore returns the k documents closest to query with
// their cosine similarity, highest first.
func (s *BoltVectorStore) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		k = defaultK
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return []domain.ScoredDocument{}, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return []domain.ScoredDocument{}, nil
	}
	if s.schema.Dimension != 0 && len(vec) != s.schema.Dimension {
		return []domain.ScoredDocument{}, fmt.Errorf("%w: query dimension %d, index has %d", domain.ErrIndexMismatch, len(vec), s.schema.Dimension)
	}

	type scored struct {
		id    string
		score float64
	}

	// Calculate similarity for all vectors (brute force)
	scores := make([]scored, 0, len(s.entries))
	for id, e := range s.entries {
		scores = append(scores, scored{id: id, score: cosineSimilarity(vec, e.vector)})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].id < scores[j].id
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]domain.ScoredDocument, k)
	for i := 0; i < k; i++ {
		e := s.entries[scores[i].id]
		results[i] = domain.ScoredDocument{
			Document: domain.Document{Content: e.content, Metadata: cloneMap(e.metadata)},
			Score:    scores[i].score,
		}
	}
	return results, nil
}

// Clear removes every vector and the schema record.
func (s *BoltVectorStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := clearBucket(tx, bucketVectors); err != nil {
			return err
		}
		return clearBucket(tx, bucketMeta)
	})
	if err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	s.entries = make(map[string]entry)
	s.schema = SchemaInfo{}
	return nil
}

// Count returns the number of vectors in the store.
func (s *BoltVectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close closes the underlying database.
func (s *BoltVectorStore) Close() error {
	return s.db.Close()
}

func copyMeta(metadatas []map[string]string, i int) map[string]string {
	if i >= len(metadatas) {
		return nil
	}
	return cloneMap(metadatas[i])
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
