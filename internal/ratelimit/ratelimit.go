// Package ratelimit counts attempts per key in fixed windows.
package ratelimit

import (
	"context"
	"time"
)

// Limiter reports whether another attempt for key is allowed in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Config struct {
	Requests int
	Window   time.Duration
}

func (c Config) enabled() bool {
	return c.Requests > 0 && c.Window > 0
}
