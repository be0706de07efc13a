package port

import "context"

// Embedder converts text to fixed-length vectors.
type Embedder interface {
	// EmbedDocuments embeds a batch of texts in one call.
	// Returns one vector per input text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding vector dimension (0 if not known up front).
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
