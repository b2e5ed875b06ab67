package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"thread-manager/internal/domain"
)

// DefaultRedisURL is used when no REDIS_URL is configured.
const DefaultRedisURL = "redis://localhost:6379"

// redisAPI is the minimal Redis command set required by RedisClient.
// *redis.Client satisfies this interface.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// putIfAbsentScript sets KEYS[1] to ARGV[1] unless it already holds a
// non-empty value. It replies {1, ARGV[1]} when it wrote and {0, current}
// otherwise.
const putIfAbsentScript = `
local current = redis.call('GET', KEYS[1])
if current == false or current == '' then
  redis.call('SET', KEYS[1], ARGV[1])
  return {1, ARGV[1]}
end
return {0, current}
`

// RedisClient stores thread mappings as plain string keys.
type RedisClient struct {
	api redisAPI
}

// OpenRedis parses a redis:// or rediss:// URL and returns a connected client
// handle. Connections are established lazily by go-redis; the caller owns
// Close.
func OpenRedis(rawURL string) (*redis.Client, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		rawURL = DefaultRedisURL
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("repository: parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewRedisClient wraps a Redis command API.
func NewRedisClient(api redisAPI) (*RedisClient, error) {
	if api == nil {
		return nil, errors.New("repository: redis api must not be nil")
	}
	return &RedisClient{api: api}, nil
}

// GetThread reads the thread mapped to identifier. A missing key is reported
// as found=false, not as an error.
func (c *RedisClient) GetThread(ctx context.Context, identifier string) (string, bool, error) {
	v, err := c.api.Get(ctx, domain.ThreadKey(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("repository: redis GetThread: %w", err)
	}
	return v, true, nil
}

// PutThreadIfAbsent stores the mapping atomically with a Lua script. A key
// holding an empty value is overwritten; any other existing value is returned
// with created=false.
func (c *RedisClient) PutThreadIfAbsent(ctx context.Context, identifier, threadID string) (string, bool, error) {
	reply, err := c.api.Eval(ctx, putIfAbsentScript, []string{domain.ThreadKey(identifier)}, threadID).Slice()
	if err != nil {
		return "", false, fmt.Errorf("repository: redis PutThreadIfAbsent: %w", err)
	}
	if len(reply) != 2 {
		return "", false, fmt.Errorf("repository: redis PutThreadIfAbsent: unexpected reply %v", reply)
	}
	written, ok := reply[0].(int64)
	if !ok {
		return "", false, fmt.Errorf("repository: redis PutThreadIfAbsent: unexpected flag %T", reply[0])
	}
	stored, ok := reply[1].(string)
	if !ok {
		return "", false, fmt.Errorf("repository: redis PutThreadIfAbsent: unexpected value %T", reply[1])
	}
	return stored, written == 1, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.api.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("repository: redis ping: %w", err)
	}
	return nil
}
