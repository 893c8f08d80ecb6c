package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/accessforge/erp-access-advisor/internal/domain/recommendation"
)

// PatternStatus is the cached view of a pattern that dashboard and report
// layers poll: enough to decide whether a recommendation is actionable or
// merely informational.
type PatternStatus struct {
	State      recommendation.State `json:"state"`
	Confidence float64              `json:"confidence"`
}

// PatternCache is a write-through Redis cache of pattern status. Misses fall
// through to the ledger; entries expire on TTL and are invalidated on every
// state or confidence change.
type PatternCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewPatternCache creates a pattern status cache with the given TTL
func NewPatternCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *PatternCache {
	return &PatternCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func patternStatusKey(algorithmID, patternKey string) string {
	return fmt.Sprintf("advisor:pattern:%s:%s", algorithmID, patternKey)
}

// Get returns the cached status, reporting false on a miss
func (c *PatternCache) Get(ctx context.Context, algorithmID, patternKey string) (PatternStatus, bool) {
	raw, err := c.client.Get(ctx, patternStatusKey(algorithmID, patternKey)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("pattern cache get failed",
				zap.String("algorithm_id", algorithmID),
				zap.String("pattern_key", patternKey),
				zap.Error(err))
		}
		return PatternStatus{}, false
	}

	var status PatternStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		c.logger.Warn("pattern cache entry corrupt, dropping",
			zap.String("algorithm_id", algorithmID),
			zap.String("pattern_key", patternKey),
			zap.Error(err))
		return PatternStatus{}, false
	}

	return status, true
}

// Set stores the status under the configured TTL. Failures are logged, not
// returned: the cache is an optimization, never a source of truth.
func (c *PatternCache) Set(ctx context.Context, algorithmID, patternKey string, status PatternStatus) {
	raw, err := json.Marshal(status)
	if err != nil {
		c.logger.Warn("pattern cache marshal failed", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, patternStatusKey(algorithmID, patternKey), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("pattern cache set failed",
			zap.String("algorithm_id", algorithmID),
			zap.String("pattern_key", patternKey),
			zap.Error(err))
	}
}

// Invalidate drops the cached status after a ledger write
func (c *PatternCache) Invalidate(ctx context.Context, algorithmID, patternKey string) {
	if err := c.client.Del(ctx, patternStatusKey(algorithmID, patternKey)).Err(); err != nil {
		c.logger.Warn("pattern cache invalidate failed",
			zap.String("algorithm_id", algorithmID),
			zap.String("pattern_key", patternKey),
			zap.Error(err))
	}
}
