package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIngest signals an ingestion batch the engine did not accept.
	ErrIngest = errors.New("ingestion failed")
	// ErrProtocol signals an engine response that does not have the expected shape.
	ErrProtocol = errors.New("unexpected engine response")
	// ErrUnavailable signals a transient failure reaching the engine.
	ErrUnavailable = errors.New("engine unavailable")
	// ErrEmbedding signals an embedding provider failure.
	ErrEmbedding = errors.New("embedding provider error")
	// ErrMetadataMismatch signals a metadata slice that is not parallel to the texts.
	ErrMetadataMismatch = errors.New("metadatas length does not match texts")
	// ErrIndexMismatch signals a local index built with a different embedding model.
	ErrIndexMismatch = errors.New("index was built with a different embedding model")
	// ErrDuplicateID signals two texts in one call that resolve to the same id.
	ErrDuplicateID = errors.New("duplicate record id")
	// ErrNoDocuments signals an empty data directory.
	ErrNoDocuments = errors.New("no documents found")
)

// BatchError describes one ingestion batch that was lost.
type BatchError struct {
	Index      int    // 0-based batch ordinal within the AddTexts call
	Records    int    // number of records in the batch
	StatusCode int    // HTTP status, 0 on transport failure
	Body       string // response body or transport error text
}

func (e *BatchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: batch %d (%d records): %s", ErrIngest.Error(), e.Index, e.Records, e.Body)
	}
	return fmt.Sprintf("%s: batch %d (%d records): status %d: %s", ErrIngest.Error(), e.Index, e.Records, e.StatusCode, e.Body)
}

func (e *BatchError) Unwrap() error { return ErrIngest }
