package moderation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cacheKeyPrefix = "moderation:clean:"

// VerdictCache remembers recently cleared content so a repeated identical
// submission skips the paid remote stages. The deterministic phrase scan
// always runs first, so the cache never masks a critical phrase. Flagged
// content is never cached.
type VerdictCache interface {
	SeenClean(ctx context.Context, content string) bool
	MarkClean(ctx context.Context, content string)
}

type redisVerdictCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVerdictCache creates a Redis-backed cache of clean-content digests.
// Returns nil when client is nil, which disables caching entirely.
func NewVerdictCache(client *redis.Client, ttl time.Duration) VerdictCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisVerdictCache{client: client, ttl: ttl}
}

func cacheKey(content string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(content))))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *redisVerdictCache) SeenClean(ctx context.Context, content string) bool {
	n, err := c.client.Exists(ctx, cacheKey(content)).Result()
	if err != nil {
		// Cache trouble must never affect the verdict path.
		log.Debug().Err(err).Msg("Verdict cache lookup failed")
		return false
	}
	return n > 0
}

func (c *redisVerdictCache) MarkClean(ctx context.Context, content string) {
	if err := c.client.Set(ctx, cacheKey(content), 1, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Msg("Verdict cache store failed")
	}
}
