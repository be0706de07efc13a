package port

import (
	"context"

	"docqa/internal/domain"
)

// VectorStore is the capability of indexing texts and returning the nearest
// matches for a query.
type VectorStore interface {
	// AddTexts embeds and indexes texts. metadatas is nil or parallel to texts.
	// Returns one "source#section" id per text. ids may be returned together
	// with a non-nil error when only part of the data was rejected. Ids are
	// upsert keys: the IDOL engine appends sections while the local store
	// rejects a call whose texts resolve to the same id twice.
	AddTexts(ctx context.Context, texts []string, metadatas []map[string]string) ([]string, error)

	// SimilaritySearch returns at most k documents most similar to query.
	SimilaritySearch(ctx context.Context, query string, k int) ([]domain.Document, error)

	// SimilaritySearchWithScore is like SimilaritySearch but carries scores.
	// Stores without score support return an empty slice.
	SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]domain.ScoredDocument, error)
}
