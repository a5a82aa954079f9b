package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementBelowScript keeps check-and-increment in one round trip so two
// clients can never both take the last slot.
var incrementBelowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return {current, 0}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {current, 1}
`)

// Redis is a Store backed by a shared Redis instance.
type Redis struct {
	client redis.Cmdable
	prefix string
}

var _ Store = (*Redis)(nil)

// NewRedis wraps client. Every key is stored under prefix (e.g. "imeigw:").
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) IncrementBelow(ctx context.Context, key string, limit int64, window time.Duration) (int64, bool, error) {
	res, err := incrementBelowScript.Run(ctx, r.client, []string{r.prefix + key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("redis increment: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("redis increment: unexpected reply %v", res)
	}
	return res[0], res[1] == 1, nil
}
