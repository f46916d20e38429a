package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL          = 5 * time.Second
	DefaultPollInterval = 25 * time.Millisecond
	keyPrefix           = "pursuit:session-lock:"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// RedisLocker is a Locker shared by every instance connected to the same Redis.
// Locks expire after TTL so a crashed holder cannot wedge a session.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
}

// NewRedisLocker builds a RedisLocker; zero durations take the defaults.
func NewRedisLocker(client *redis.Client, ttl, poll time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &RedisLocker{client: client, ttl: ttl, poll: poll}
}

// Acquire polls SET NX until it wins the key or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	name := keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		won, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if won {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}

	var (
		once   sync.Once
		result error
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			deleted, err := releaseScript.Run(ctx, l.client, []string{name}, token).Int()
			switch {
			case err != nil:
				result = fmt.Errorf("release lock %s: %w", key, err)
			case deleted == 0:
				result = fmt.Errorf("release lock %s: %w", key, ErrLockLost)
			}
		})
		return result
	}, nil
}
