package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var bucketEmbeddings = []byte("embeddings")

// BoltStore persists cache entries in a bbolt file. Each value is prefixed
// with its expiry as unix nanoseconds (0 = never).
type BoltStore struct {
	db  *bbolt.DB
	ttl time.Duration
}

// NewBoltStore opens (creating if needed) the cache file at path.
func NewBoltStore(path string, ttl time.Duration) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}
	return &BoltStore{db: db, ttl: ttl}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(key))
		if len(data) < 8 {
			return ErrKeyNotFound
		}
		expiry := int64(binary.LittleEndian.Uint64(data[:8]))
		if expiry != 0 && time.Now().UnixNano() > expiry {
			return ErrKeyNotFound
		}
		// data is only valid for the life of the transaction
		out = append([]byte(nil), data[8:]...)
		return nil
	})
	if err != nil {
		if err == ErrKeyNotFound {
			return nil, err
		}
		return nil, &Error{Op: OpGet, Err: err}
	}
	return out, nil
}

func (s *BoltStore) Set(_ context.Context, key string, value []byte) error {
	var expiry int64
	if s.ttl > 0 {
		expiry = time.Now().Add(s.ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.LittleEndian.PutUint64(buf[:8], uint64(expiry))
	copy(buf[8:], value)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(key), buf)
	})
	if err != nil {
		return &Error{Op: OpSet, Err: err}
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
