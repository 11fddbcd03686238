package redis

import (
	"context"
	"fmt"
	"time"
)

// ArtifactCache keeps rendered onboarding codes keyed by universal id and
// format. Rendering is deterministic so a miss (or a Redis outage) just means
// recomputing; nothing behind this cache is authoritative.
type ArtifactCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewArtifactCache(client RedisClient, ttl time.Duration) *ArtifactCache {
	return &ArtifactCache{client: client, ttl: ttl}
}

func artifactKey(universalID, format string) string {
	return fmt.Sprintf("onboarding_code:%s:%s", universalID, format)
}

func (c *ArtifactCache) Get(ctx context.Context, universalID, format string) (string, bool) {
	v, err := c.client.Get(ctx, artifactKey(universalID, format))
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *ArtifactCache) Put(ctx context.Context, universalID, format, rendered string) {
	// Best effort; errors are ignored on purpose.
	_ = c.client.Set(ctx, artifactKey(universalID, format), rendered, c.ttl)
}
