package idol

import (
	"net/url"
	"strconv"
	"strings"

	"docqa/internal/domain"
)

const (
	addDataAction  = "/DREADDDATA?CreateDatabase=true"
	endOfData      = "\n#DREENDDATAREFERENCE"
	contentTypeDRE = "text/plain; charset=UTF-8"
)

// FormatVector renders v as comma-joined floats with the shortest exact
// float32 representation.
func FormatVector(v []float32) string {
	var b strings.Builder
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	return b.String()
}

// encodeRecord renders one IDX record block.
func encodeRecord(rec domain.IndexRecord, field, database string) string {
	var b strings.Builder
	b.WriteString("\n#DREREFERENCE ")
	b.WriteString(rec.Source)
	b.WriteString("\n#DREFIELD ")
	b.WriteString(field)
	b.WriteString("=\"")
	b.WriteString(FormatVector(rec.Vector))
	b.WriteString("\"\n#DRESECTION ")
	b.WriteString(strconv.Itoa(rec.Section))
	b.WriteString("\n#DREDBNAME ")
	b.WriteString(database)
	b.WriteString("\n#DRECONTENT\n")
	b.WriteString(rec.Content)
	b.WriteString("\n#DREENDDOC\n")
	return b.String()
}

// batch is a group of encoded records ready to be posted.
type batch struct {
	body    string
	records int
}

// batcher accumulates record blocks and cuts a batch once the buffer has
// grown past limit. The size check runs before a block is appended, so a
// block is never split across batches.
type batcher struct {
	limit   int
	buf     strings.Builder
	records int
}

func newBatcher(limit int) *batcher {
	return &batcher{limit: limit}
}

// add appends block and returns the batch that had to be flushed first, if any.
func (b *batcher) add(block string) (batch, bool) {
	var out batch
	flushed := false
	if b.buf.Len() > 0 && b.buf.Len() > b.limit {
		out, flushed = b.flush()
	}
	b.buf.WriteString(block)
	b.records++
	return out, flushed
}

// flush returns the pending batch and resets the buffer.
func (b *batcher) flush() (batch, bool) {
	if b.buf.Len() == 0 {
		return batch{}, false
	}
	out := batch{body: b.buf.String() + endOfData, records: b.records}
	b.buf.Reset()
	b.records = 0
	return out, true
}

// vectorQueryText builds the text parameter for a vector query.
func vectorQueryText(v []float32) string {
	return "text=VECTOR{" + FormatVector(v) + "}:VECTOR"
}

// keywordQueryText builds the text parameter for a conceptual text query.
func keywordQueryText(query string) string {
	return "DetectLanguageType=true&anylanguage=true&text=" + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}

// queryURL builds the query action URL. The engine accepts the action as a
// path segment, so the string is assembled by hand rather than through url.URL.
func queryURL(base string, k int, text string) string {
	return strings.TrimRight(base, "/") + "/a=query&ResponseFormat=json&maxresults=" + strconv.Itoa(k) + "&" + text
}
