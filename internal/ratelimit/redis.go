package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ratelimit:"

// incrWindow increments the counter and starts its window on the first hit.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Redis is a fixed window limiter shared by every instance pointing at the same server.
type Redis struct {
	cfg    Config
	client *redis.Client
}

func NewRedis(client *redis.Client, cfg Config) *Redis {
	return &Redis{cfg: cfg, client: client}
}

// NewRedisClient accepts either a redis:// URL or a plain host:port address.
func NewRedisClient(url string) (*redis.Client, error) {
	if strings.Contains(url, "://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: url}), nil
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if !r.cfg.enabled() {
		return true, nil
	}
	n, err := incrWindow.Run(ctx, r.client, []string{keyPrefix + key}, r.cfg.Window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return n <= int64(r.cfg.Requests), nil
}
