package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keySchema = []byte("schema")

// SchemaInfo records what an index was built with.
type SchemaInfo struct {
	Version   int    `json:"version"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

func getSchemaInfo(db *bbolt.DB) (*SchemaInfo, error) {
	var info SchemaInfo
	err := db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySchema)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &info)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read schema info: %w", err)
	}
	return &info, nil
}

func putSchemaInfo(tx *bbolt.Tx, info *SchemaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(keySchema, data)
}

// checkSchema compares a stored schema with the current embedder. An empty
// stored schema (new index) always passes.
func checkSchema(stored *SchemaInfo, model string, dimension int) error {
	if stored.Version == 0 {
		return nil
	}
	if stored.Version > CurrentSchemaVersion {
		return fmt.Errorf("%w: created by newer version (v%d > v%d)", domain.ErrIndexMismatch, stored.Version, CurrentSchemaVersion)
	}
	if stored.Model != model {
		return fmt.Errorf("%w: index model %q, embedder model %q", domain.ErrIndexMismatch, stored.Model, model)
	}
	if stored.Dimension != 0 && dimension != 0 && stored.Dimension != dimension {
		return fmt.Errorf("%w: index dimension %d, embedder dimension %d", domain.ErrIndexMismatch, stored.Dimension, dimension)
	}
	return nil
}
