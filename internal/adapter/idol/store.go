// Package idol implements the vector store port on top of an IDOL content
// engine: records are ingested as IDX text through DREADDDATA and retrieved
// with the query action, either by vector or by conceptual text search.
package idol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/metrics"
	"docqa/internal/port"
)

const (
	DefaultVectorField    = "VECTOR"
	DefaultDatabase       = "DOCQA"
	DefaultIndexBatchSize = 5 * 1204 * 1024
	DefaultK              = 4

	maxLoggedBody = 2048
)

// Config configures a Store.
type Config struct {
	URL            string
	VectorField    string
	Database       string
	IndexBatchSize int // bytes accumulated before a batch is posted
	VectorSearch   bool
	Timeout        time.Duration
}

// DefaultConfig returns the engine defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		VectorField:    DefaultVectorField,
		Database:       DefaultDatabase,
		IndexBatchSize: DefaultIndexBatchSize,
		VectorSearch:   true,
		Timeout:        60 * time.Second,
	}
}

// Option configures optional Store dependencies.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

// Store is a port.VectorStore backed by an IDOL content engine.
type Store struct {
	embedder port.Embedder
	cfg      Config
	client   *http.Client
	logger   *zap.Logger
}

var _ port.VectorStore = (*Store)(nil)

// New creates a Store. Zero-valued config fields take their defaults.
func New(embedder port.Embedder, cfg Config, opts ...Option) *Store {
	if cfg.VectorField == "" {
		cfg.VectorField = DefaultVectorField
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.IndexBatchSize <= 0 {
		cfg.IndexBatchSize = DefaultIndexBatchSize
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	s := &Store{
		embedder: embedder,
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FromTexts creates a Store and indexes texts into it.
func FromTexts(ctx context.Context, texts []string, embedder port.Embedder, metadatas []map[string]string, cfg Config, opts ...Option) (*Store, []string, error) {
	s := New(embedder, cfg, opts...)
	ids, err := s.AddTexts(ctx, texts, metadatas)
	return s, ids, err
}

// AddTexts embeds texts in a single call, encodes them as IDX records and
// posts them in size-bounded batches. Failed batches are logged and not
// retried; their errors are joined into the returned error while ids are
// still returned for every text.
func (s *Store) AddTexts(ctx context.Context, texts []string, metadatas []map[string]string) ([]string, error) {
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, fmt.Errorf("%w: %d texts, %d metadatas", domain.ErrMetadataMismatch, len(texts), len(metadatas))
	}
	if len(texts) == 0 {
		return []string{}, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbedding, len(vectors), len(texts))
	}

	var (
		ids      = make([]string, 0, len(texts))
		sections domain.SectionCounter
		b        = newBatcher(s.cfg.IndexBatchSize)
		errs     []error
		ordinal  int
	)
	send := func(bt batch) {
		if err := s.postBatch(ctx, ordinal, bt); err != nil {
			errs = append(errs, err)
		}
		ordinal++
	}

	for i, text := range texts {
		rec := domain.IndexRecord{
			Source:  domain.ResolveSource(metadatas, i),
			Vector:  vectors[i],
			Content: text,
		}
		rec.Section = sections.Next(rec.Source)
		ids = append(ids, rec.ID())

		if bt, ok := b.add(encodeRecord(rec, s.cfg.VectorField, s.cfg.Database)); ok {
			send(bt)
		}
	}
	if bt, ok := b.flush(); ok {
		send(bt)
	}

	return ids, errors.Join(errs...)
}

func (s *Store) postBatch(ctx context.Context, ordinal int, bt batch) error {
	endpoint := s.cfg.URL + addDataAction
	metrics.IdolBatchBytes.Observe(float64(len(bt.body)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(bt.body))
	if err != nil {
		return &domain.BatchError{Index: ordinal, Records: bt.records, Body: err.Error()}
	}
	req.Header.Set("Content-Type", contentTypeDRE)

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.IdolBatchesTotal.WithLabelValues("error").Inc()
		s.logger.Error("idol batch failed",
			zap.Int("batch", ordinal),
			zap.Int("records", bt.records),
			zap.String("url", endpoint),
			zap.Error(err),
		)
		return &domain.BatchError{Index: ordinal, Records: bt.records, Body: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.IdolBatchesTotal.WithLabelValues("error").Inc()
		s.logger.Error("idol batch rejected",
			zap.Int("batch", ordinal),
			zap.Int("records", bt.records),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return &domain.BatchError{Index: ordinal, Records: bt.records, StatusCode: resp.StatusCode, Body: string(body)}
	}

	metrics.IdolBatchesTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("idol batch indexed",
		zap.Int("batch", ordinal),
		zap.Int("records", bt.records),
		zap.Int("bytes", len(bt.body)),
	)
	return nil
}

// SimilaritySearch returns up to k documents for query. On failure it returns
// an empty result with ErrUnavailable (network or 5xx) or ErrProtocol
// (unexpected response).
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Document, error) {
	if k <= 0 {
		k = DefaultK
	}

	mode := "text"
	text := ""
	if s.cfg.VectorSearch {
		mode = "vector"
		vec, err := s.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return []domain.Document{}, fmt.Errorf("failed to embed query: %w", err)
		}
		text = vectorQueryText(vec)
	} else {
		text = keywordQueryText(query)
	}
	endpoint := queryURL(s.cfg.URL, k, text)

	body, err := s.get(ctx, endpoint)
	if err != nil {
		result := "unavailable"
		if errors.Is(err, domain.ErrProtocol) {
			result = "protocol_error"
		}
		metrics.IdolSearchesTotal.WithLabelValues(mode, result).Inc()
		s.logger.Error("idol query failed", zap.String("url", endpoint), zap.Error(err))
		return []domain.Document{}, err
	}

	docs, err := parseQueryResponse(body)
	if err != nil {
		metrics.IdolSearchesTotal.WithLabelValues(mode, "protocol_error").Inc()
		s.logger.Error("unexpected idol response",
			zap.String("url", endpoint),
			zap.ByteString("response", truncate(body)),
			zap.Error(err),
		)
		return []domain.Document{}, err
	}
	if len(docs) == 0 {
		metrics.IdolSearchesTotal.WithLabelValues(mode, "empty").Inc()
		return []domain.Document{}, nil
	}

	metrics.IdolSearchesTotal.WithLabelValues(mode, "hits").Inc()
	return docs, nil
}

func (s *Store) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", domain.ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrUnavailable, resp.StatusCode, truncate(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrProtocol, resp.StatusCode, truncate(body))
	}
	return body, nil
}

// SimilaritySearchWithScore is not supported by the engine adapter and
// always returns an empty result.
func (s *Store) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	return []domain.ScoredDocument{}, nil
}

func truncate(b []byte) []byte {
	if len(b) > maxLoggedBody {
		return b[:maxLoggedBody]
	}
	return b
}
