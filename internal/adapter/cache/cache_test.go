package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

func testRoundTrip(t *testing.T, s kv) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	if err := s.Set(ctx, "k", []byte{1, 2, 3}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("got %v", got)
	}

	if err := s.Set(ctx, "k", []byte{9}); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, _ = s.Get(ctx, "k")
	if !bytes.Equal(got, []byte{9}) {
		t.Errorf("expected overwritten value, got %v", got)
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	testRoundTrip(t, NewMemoryStore(10, 0))
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, 0)

	s.Set(ctx, "a", []byte("1"))
	s.Set(ctx, "b", []byte("2"))
	s.Get(ctx, "a") // a is now most recent
	s.Set(ctx, "c", []byte("3"))

	if _, err := s.Get(ctx, "b"); !errors.Is(err, ErrKeyNotFound) {
		t.Error("expected b to be evicted")
	}
	if _, err := s.Get(ctx, "a"); err != nil {
		t.Error("expected a to survive")
	}
	if s.Size() != 2 {
		t.Errorf("expected size 2, got %d", s.Size())
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Set(ctx, "k", []byte("v"))
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("expected hit, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected expired entry, got %v", err)
	}
	if s.Size() != 0 {
		t.Errorf("expired entry should be removed, size %d", s.Size())
	}
}

func TestBoltStore_RoundTrip(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "cache", "emb.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testRoundTrip(t, s)
}

func TestBoltStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emb.db")
	ctx := context.Background()

	s, err := NewBoltStore(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewBoltStore(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Errorf("expected persisted value, got %q, %v", got, err)
	}
}

func TestBoltStore_Expired(t *testing.T) {
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "emb.db"), time.Nanosecond)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected expired entry, got %v", err)
	}
}

// TestValkeyStore_RoundTrip runs against a live server when DOCQA_TEST_VALKEY_ADDR is set.
func TestValkeyStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("DOCQA_TEST_VALKEY_ADDR")
	if addr == "" {
		t.Skip("DOCQA_TEST_VALKEY_ADDR not set")
	}

	s, err := NewValkeyStore(ValkeyConfig{Addrs: strings.Split(addr, ","), TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	key := "docqa:test:" + time.Now().Format(time.RFC3339Nano)
	if err := s.Set(ctx, key, []byte{0, 1, 2}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, key)
	if err != nil || !bytes.Equal(got, []byte{0, 1, 2}) {
		t.Errorf("got %v, %v", got, err)
	}
	if _, err := s.Get(ctx, key+":missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestNewValkeyStore_RequiresAddrs(t *testing.T) {
	if _, err := NewValkeyStore(ValkeyConfig{}); err == nil {
		t.Error("expected error without addrs")
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := &Error{Op: OpSet, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected Error to unwrap")
	}
	if err.Error() != "SET: disk full" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
