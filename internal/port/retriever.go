package port

import (
	"context"

	"docqa/internal/domain"
)

// Retriever returns the documents relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.Document, error)
}
