package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const audioKeyPrefix = "audiobook:audio:"

// RedisStore keeps audio in Redis hashes so API and worker processes can
// share references.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ref := uuid.NewString()
	key := audioKeyPrefix + ref

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"content_type", contentType,
			"created_at", time.Now().UTC().Format(time.RFC3339Nano),
			"data", data,
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store audio: %w", err)
	}
	return ref, nil
}

func (s *RedisStore) Get(ctx context.Context, ref string) (*Object, error) {
	if _, err := uuid.Parse(ref); err != nil {
		return nil, ErrNotFound
	}

	fields, err := s.client.HGetAll(ctx, audioKeyPrefix+ref).Result()
	if err != nil {
		return nil, fmt.Errorf("load audio %s: %w", ref, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	created, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
	return &Object{
		Data:        []byte(fields["data"]),
		ContentType: fields["content_type"],
		CreatedAt:   created,
	}, nil
}
