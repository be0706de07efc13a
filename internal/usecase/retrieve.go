package usecase

import (
	"context"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// VectorStoreRetriever adapts a vector store to the Retriever port with a fixed k.
type VectorStoreRetriever struct {
	store port.VectorStore
	k     int
}

var _ port.Retriever = (*VectorStoreRetriever)(nil)

func NewVectorStoreRetriever(store port.VectorStore, k int) *VectorStoreRetriever {
	return &VectorStoreRetriever{store: store, k: k}
}

// Retrieve returns the k documents closest to query.
func (r *VectorStoreRetriever) Retrieve(ctx context.Context, query string) ([]domain.Document, error) {
	return r.store.SimilaritySearch(ctx, query, r.k)
}
