package utils

import (
	"context"
	"time"
)

// Budgets for single storage round trips. A caller deadline that is already
// tighter still wins.
const (
	DBQueryTimeout = 5 * time.Second
	RedisTimeout   = 2 * time.Second
)

func WithDBTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DBQueryTimeout)
}

func WithRedisTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, RedisTimeout)
}
