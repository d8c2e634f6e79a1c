package secrets

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore reads secrets from a Redis hash per namespace, keyed
// conduit:secrets:<namespace>. Writing secrets is an operator concern and
// happens outside this process.
type RedisStore struct {
	client goredis.UniversalClient
}

// NewRedisStore connects to Redis using a redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &RedisStore{client: goredis.NewClient(opts)}, nil
}

func (s *RedisStore) Fetch(ctx context.Context, namespace string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, "conduit:secrets:"+namespace).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch secrets for %s: %w", namespace, err)
	}

	return values, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
