package port

import "docqa/internal/domain"

type Splitter interface {
	SplitDocuments(docs []domain.Document) []domain.Document
}
