package redis

import (
	"context"
	"time"
)

type RateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow is a fixed-window counter. Redis being down fails open: claim-code
// throttling is protection against brute force, not a correctness guarantee.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return true, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return true, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}
