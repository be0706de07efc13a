package domain

import "fmt"

// RecordID formats a "source#section" identifier.
func RecordID(source string, section int) string {
	return fmt.Sprintf("%s#%d", source, section)
}

// SectionCounter numbers chunks within their originating source. The counter
// resets to 0 whenever the source differs from the previous call.
type SectionCounter struct {
	last    string
	section int
	started bool
}

// Next returns the section for source.
func (c *SectionCounter) Next(source string) int {
	if c.started && source == c.last {
		c.section++
	} else {
		c.section = 0
	}
	c.last = source
	c.started = true
	return c.section
}

// ResolveSource returns metadata["source"] for chunk i, or "unknown_{i}".
func ResolveSource(metadatas []map[string]string, i int) string {
	if i < len(metadatas) {
		if src, ok := metadatas[i][MetaSource]; ok {
			return src
		}
	}
	return fmt.Sprintf("unknown_%d", i)
}
