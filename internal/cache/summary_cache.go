package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultSummaryTTL bounds how stale a cached summary may be.
const DefaultSummaryTTL = 30 * time.Second

// SummaryCache is an optional Redis read-through cache for org quota
// summaries. A nil receiver or nil client disables caching; every method is
// then a no-op, so callers never branch on configuration.
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSummaryCache wires a summary cache over a Redis client.
func NewSummaryCache(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = DefaultSummaryTTL
	}
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

// summaryKey builds the cache key for one organization.
func summaryKey(orgID uint64) string {
	return fmt.Sprintf("b2bquota:summary:%d", orgID)
}

// Get loads a cached summary into dest. It returns false on miss, disabled
// cache, or any Redis error; Redis failures never fail the read path.
func (c *SummaryCache) Get(ctx context.Context, orgID uint64, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	payload, errGet := c.rdb.Get(ctx, summaryKey(orgID)).Bytes()
	if errGet != nil {
		if !errors.Is(errGet, redis.Nil) {
			log.WithError(errGet).Warn("summary cache: get failed")
		}
		return false
	}
	if errDecode := json.Unmarshal(payload, dest); errDecode != nil {
		log.WithError(errDecode).Warn("summary cache: stale payload dropped")
		return false
	}
	return true
}

// Set stores a summary with the configured TTL.
func (c *SummaryCache) Set(ctx context.Context, orgID uint64, value any) {
	if c == nil || c.rdb == nil {
		return
	}
	payload, errEncode := json.Marshal(value)
	if errEncode != nil {
		return
	}
	if errSet := c.rdb.Set(ctx, summaryKey(orgID), payload, c.ttl).Err(); errSet != nil {
		log.WithError(errSet).Warn("summary cache: set failed")
	}
}

// Invalidate drops the cached summary for an organization. Called after any
// committed allocation, revocation, or topup.
func (c *SummaryCache) Invalidate(ctx context.Context, orgID uint64) {
	if c == nil || c.rdb == nil {
		return
	}
	if errDel := c.rdb.Del(ctx, summaryKey(orgID)).Err(); errDel != nil {
		log.WithError(errDel).Warn("summary cache: invalidate failed")
	}
}
