package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/engine"
)

// AvailabilityCacheService caches each teacher's busy-block computation
// (existing schedules + unavailable-window preferences, translated into
// fixed engine.CourseAssignments) so repeated generate/preview calls for the
// same term don't recompute it from the database every time.
type AvailabilityCacheService struct {
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewAvailabilityCacheService wraps a CacheService with the TTL used for
// busy-block entries. Pass a disabled/nil CacheService to run uncached.
func NewAvailabilityCacheService(cache *CacheService, ttl time.Duration, logger *zap.Logger) *AvailabilityCacheService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityCacheService{cache: cache, ttl: ttl, logger: logger}
}

// GetOrCompute returns the cached busy blocks for termID+teacherID, falling
// back to compute on a miss and populating the cache with the result.
func (a *AvailabilityCacheService) GetOrCompute(
	ctx context.Context,
	termID, teacherID string,
	compute func(ctx context.Context) ([]engine.CourseAssignment, error),
) ([]engine.CourseAssignment, error) {
	if a == nil || a.cache == nil || !a.cache.Enabled() {
		return compute(ctx)
	}

	key := availabilityCacheKey(termID, teacherID)
	var cached []engine.CourseAssignment
	hit, err := a.cache.Get(ctx, key, &cached)
	if err != nil {
		a.logger.Sugar().Warnw("availability cache read failed, falling back to compute", "term", termID, "teacher", teacherID, "error", err)
	}
	if hit {
		return cached, nil
	}

	blocks, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Set(ctx, key, blocks, a.ttl); err != nil {
		a.logger.Sugar().Warnw("availability cache write failed", "term", termID, "teacher", teacherID, "error", err)
	}
	return blocks, nil
}

// Invalidate drops cached availability for a term, e.g. after a schedule is
// saved and existing teacher schedules change.
func (a *AvailabilityCacheService) Invalidate(ctx context.Context, termID string) error {
	if a == nil || a.cache == nil || !a.cache.Enabled() {
		return nil
	}
	return a.cache.Invalidate(ctx, fmt.Sprintf("availability:%s:*", termID))
}

func availabilityCacheKey(termID, teacherID string) string {
	return fmt.Sprintf("availability:%s:%s", termID, teacherID)
}
