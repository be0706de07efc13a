package domain

import "time"

// Well-known metadata keys.
const (
	MetaSource = "source"
	MetaPage   = "page"
)

// Document is a unit of text with metadata. Loaders produce them, splitters
// produce smaller ones with the same metadata, stores return them as hits.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Source returns the "source" metadata value, or "" when absent.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Page returns the "page" metadata value, or "" when absent.
func (d Document) Page() string {
	return d.Metadata[MetaPage]
}

// IndexRecord is one chunk plus its embedding, addressed by source and section.
type IndexRecord struct {
	Source  string
	Section int
	Vector  []float32
	Content string
}

// ID returns the record identifier in "source#section" form.
func (r IndexRecord) ID() string {
	return RecordID(r.Source, r.Section)
}

type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// QAResult is the outcome of one retrieval-augmented question.
type QAResult struct {
	Query    string        `json:"query"`
	Answer   string        `json:"answer"`
	Sources  []Document    `json:"sources,omitempty"`
	Duration time.Duration `json:"duration"`
}
