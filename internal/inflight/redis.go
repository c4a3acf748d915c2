package inflight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "answerdesk:inflight:"

// Only the holder that set the key may delete it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares held keys between server replicas. Keys expire after
// ttl so a crashed holder cannot block a target forever.
type RedisGuard struct {
	client *goredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGuard creates a RedisGuard connected to addr.
func NewRedisGuard(addr string, ttl time.Duration, logger *slog.Logger) *RedisGuard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{
		client: goredis.NewClient(&goredis.Options{Addr: addr}),
		ttl:    ttl,
		logger: logger,
	}
}

// Ping checks connectivity.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

// Acquire sets key with SET NX, or returns ErrBusy when another holder has it.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, keyPrefix+key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrBusy
	}

	return func() {
		// The request context may already be done when releasing.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, g.client, []string{keyPrefix + key}, token).Err(); err != nil {
			g.logger.Warn("failed to release in-flight key", "key", key, "error", err)
		}
	}, nil
}
