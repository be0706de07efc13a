package llm

import (
	"context"

	"docqa/internal/port"
)

// SearchOnlyResponse is the fixed answer of the search-only backend.
const SearchOnlyResponse = "only search documents"

// SearchOnly is an LLM that never generates. It is used when only the
// retrieved source documents matter.
type SearchOnly struct{}

var _ port.LLM = SearchOnly{}

func (SearchOnly) Generate(context.Context, string) (string, error) {
	return SearchOnlyResponse, nil
}

func (SearchOnly) ModelName() string { return "search-only" }
