package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClient is the subset of the go-redis client used for claims.
type RedisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisOptions configures the shared Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisClaimStore shares submission claims across API instances through Redis.
type RedisClaimStore struct {
	client RedisClient
	tokens func() string
}

func NewRedisClaimStore(client RedisClient) (*RedisClaimStore, error) {
	if client == nil {
		return nil, errors.New("dedup: redis client is required")
	}
	return &RedisClaimStore{
		client: client,
		tokens: func() string { return ulid.Make().String() },
	}, nil
}

// Connect opens a Redis client and verifies it answers PING.
func Connect(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, errors.New("dedup: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("dedup: ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, errors.New("dedup: claim key is required")
	}
	if ttl <= 0 {
		return "", false, errors.New("dedup: claim ttl must be positive")
	}
	token := s.tokens()
	ok, err := s.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("dedup: claim %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (s *RedisClaimStore) Release(ctx context.Context, key, token string) error {
	if strings.TrimSpace(key) == "" || token == "" {
		return nil
	}
	err := releaseScript.Run(ctx, s.client, []string{key}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("dedup: release %s: %w", key, err)
	}
	return nil
}
