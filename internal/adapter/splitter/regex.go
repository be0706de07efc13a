package splitter

import (
	"fmt"
	"regexp"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// RegexSplitter splits text before every match of a separator pattern and
// keeps the separator at the start of the following piece.
type RegexSplitter struct {
	re *regexp.Regexp
	merger
}

var _ port.Splitter = (*RegexSplitter)(nil)

func NewRegexSplitter(pattern string, chunkSize, chunkOverlap int) (*RegexSplitter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid separator pattern %q: %w", pattern, err)
	}
	return &RegexSplitter{re: re, merger: merger{size: chunkSize, overlap: chunkOverlap}}, nil
}

func (s *RegexSplitter) SplitDocuments(docs []domain.Document) []domain.Document {
	return splitDocuments(docs, s.SplitText)
}

func (s *RegexSplitter) SplitText(text string) []string {
	var pieces []string
	start := 0
	for _, loc := range s.re.FindAllStringIndex(text, -1) {
		if loc[0] == loc[1] || loc[0] == 0 {
			continue
		}
		pieces = append(pieces, text[start:loc[0]])
		start = loc[0]
	}
	pieces = append(pieces, text[start:])

	nonEmpty := pieces[:0]
	for _, p := range pieces {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return s.merge(nonEmpty, "")
}
