package ratelimit

import "context"

// RateLimiter bounds upload throughput per site across all instances.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}
