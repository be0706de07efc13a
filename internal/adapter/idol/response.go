package idol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"docqa/internal/domain"
)

// The engine's JSON rendering of XML turns repeated elements into arrays and
// single elements into objects, and text nodes into {"$": value}. The types
// below accept both forms.

// many decodes either a JSON array or a single value into a slice.
type many[T any] []T

func (m *many[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*m = items
		return nil
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*m = many[T]{item}
	return nil
}

// textNode is an element whose value sits under "$" as a string or a number.
type textNode struct {
	Value string
	Set   bool
}

func (n *textNode) UnmarshalJSON(data []byte) error {
	var raw struct {
		Dollar json.RawMessage `json:"$"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Dollar) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Dollar, &s); err == nil {
		n.Value, n.Set = s, true
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(raw.Dollar, &num); err != nil {
		return fmt.Errorf("unexpected text node %s", raw.Dollar)
	}
	n.Value, n.Set = num.String(), true
	return nil
}

type queryResponse struct {
	AutnResponse *struct {
		ResponseData *struct {
			NumHits *textNode `json:"autn:numhits"`
			Hits    many[hit] `json:"autn:hit"`
		} `json:"responsedata"`
	} `json:"autnresponse"`
}

type hit struct {
	Reference textNode `json:"autn:reference"`
	Content   struct {
		Documents many[struct {
			Content many[textNode] `json:"DRECONTENT"`
		}] `json:"DOCUMENT"`
	} `json:"autn:content"`
}

// parseQueryResponse turns a query response body into documents. A body
// without autn:numhits is a protocol error.
func parseQueryResponse(body []byte) ([]domain.Document, error) {
	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProtocol, err)
	}
	if resp.AutnResponse == nil || resp.AutnResponse.ResponseData == nil ||
		resp.AutnResponse.ResponseData.NumHits == nil || !resp.AutnResponse.ResponseData.NumHits.Set {
		return nil, fmt.Errorf("%w: missing autn:numhits", domain.ErrProtocol)
	}

	data := resp.AutnResponse.ResponseData
	numHits, err := strconv.Atoi(data.NumHits.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: autn:numhits %q is not a number", domain.ErrProtocol, data.NumHits.Value)
	}
	if numHits == 0 {
		return nil, nil
	}

	var docs []domain.Document
	for _, h := range data.Hits {
		for _, d := range h.Content.Documents {
			content := ""
			if len(d.Content) > 0 {
				content = d.Content[0].Value
			}
			docs = append(docs, domain.Document{
				Content:  content,
				Metadata: map[string]string{domain.MetaSource: h.Reference.Value},
			})
		}
	}
	return docs, nil
}
