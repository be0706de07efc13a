// Package splitter cuts documents into overlapping chunks sized in runes.
package splitter

import (
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
)

// merger packs small pieces into chunks of at most size runes, carrying up
// to overlap runes of trailing pieces into the next chunk.
type merger struct {
	size    int
	overlap int
}

func (m merger) merge(pieces []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)

	var chunks []string
	var current []string
	total := 0

	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n+joinLen() > m.size && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			// Drop leading pieces until what remains fits the overlap and leaves room for p.
			for total > m.overlap || (total+n+joinLen() > m.size && total > 0) {
				drop := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}

	if chunk := strings.TrimSpace(strings.Join(current, sep)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitDocuments applies split to each document, copying metadata to every chunk.
func splitDocuments(docs []domain.Document, split func(string) []string) []domain.Document {
	var out []domain.Document
	for _, doc := range docs {
		for _, chunk := range split(doc.Content) {
			meta := make(map[string]string, len(doc.Metadata))
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			out = append(out, domain.Document{Content: chunk, Metadata: meta})
		}
	}
	return out
}
