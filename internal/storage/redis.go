package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore caches recently-ingested source URLs so repeat pipeline runs can
// skip most of the database existence check. Purely an accelerator: Postgres
// remains the authority on what exists.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: rdb, ttl: ttl}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ingestedKey hashes the URL so arbitrary listing URLs make safe, fixed-size
// Redis keys.
func ingestedKey(url string) string {
	h := sha256.Sum256([]byte(url))
	return "ingested:" + hex.EncodeToString(h[:])
}

// MarkIngested records the URLs as recently ingested, with the store's TTL.
func (s *RedisStore) MarkIngested(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, u := range urls {
		pipe.Set(ctx, ingestedKey(u), "1", s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// SeenURLs returns the subset of urls that were ingested within the TTL.
func (s *RedisStore) SeenURLs(ctx context.Context, urls []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	if len(urls) == 0 {
		return seen, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(urls))
	for i, u := range urls {
		cmds[i] = pipe.Exists(ctx, ingestedKey(u))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			seen[urls[i]] = struct{}{}
		}
	}
	return seen, nil
}
