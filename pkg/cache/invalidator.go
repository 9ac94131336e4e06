package cache

import (
	"context"

	"github.com/tajerhq/tajer-backend/pkg/logger"
)

// Invalidator is the post-commit hook domain services call after a
// mutation. Implementations must be best-effort: a failed invalidation is
// logged and swallowed, never surfaced to the caller.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string)
}

type redisInvalidator struct {
	client *Client
	logg   *logger.Logger
}

// NewInvalidator builds a redis-backed invalidator.
func NewInvalidator(client *Client, logg *logger.Logger) Invalidator {
	return &redisInvalidator{client: client, logg: logg}
}

func (r *redisInvalidator) Invalidate(ctx context.Context, keys ...string) {
	if r.client == nil || len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...); err != nil && r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "cache_keys", keys), "cache invalidation failed")
	}
}

type noopInvalidator struct{}

// NewNoopInvalidator returns an invalidator that does nothing, for wiring
// without redis (tests, workers).
func NewNoopInvalidator() Invalidator {
	return noopInvalidator{}
}

func (noopInvalidator) Invalidate(context.Context, ...string) {}
