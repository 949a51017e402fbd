package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	data := []byte("RIFF....WAVE")
	ref, err := s.Put(ctx, data, "audio/wav")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	data[0] = 'X'

	obj, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(obj.Data) != "RIFF....WAVE" || obj.ContentType != "audio/wav" {
		t.Fatalf("unexpected object %+v", obj)
	}
}

func TestMemoryStoreExpires(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	ref, _ := s.Put(ctx, []byte("a"), "audio/mpeg")
	now = now.Add(2 * time.Minute)

	if _, err := s.Get(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}

	_, _ = s.Put(ctx, []byte("b"), "audio/mpeg")
	if n := s.Len(); n != 1 {
		t.Fatalf("expected expired entry to be swept, %d live", n)
	}
}

func TestMemoryStoreUnknownRef(t *testing.T) {
	if _, err := NewMemoryStore(0).Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	s := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	ref, err := s.Put(ctx, []byte{0xff, 0xfb, 0x00}, "audio/mpeg")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	obj, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(obj.Data) != 3 || obj.Data[2] != 0x00 || obj.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected object %+v", obj)
	}

	if _, err := s.Get(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
