package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/engine"
	appErrors "github.com/noah-isme/sma-adp-api/pkg/errors"
)

type stubAvailabilityCacheRepo struct {
	store map[string][]byte
}

func (s *stubAvailabilityCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubAvailabilityCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubAvailabilityCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	s.store = nil
	return nil
}

func TestAvailabilityCacheServiceComputesOnceThenHits(t *testing.T) {
	cacheRepo := &stubAvailabilityCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewAvailabilityCacheService(cacheSvc, time.Minute, zap.NewNop())

	computeCalls := 0
	compute := func(ctx context.Context) ([]engine.CourseAssignment, error) {
		computeCalls++
		return []engine.CourseAssignment{{VariableID: "busy-pref-teacher-1-1", TeacherID: "teacher-1", IsFixed: true}}, nil
	}

	ctx := context.Background()
	first, err := svc.GetOrCompute(ctx, "term-1", "teacher-1", compute)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Equal(t, 1, computeCalls)

	second, err := svc.GetOrCompute(ctx, "term-1", "teacher-1", compute)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, computeCalls, "second call should hit the cache instead of recomputing")

	require.NoError(t, svc.Invalidate(ctx, "term-1"))
	_, err = svc.GetOrCompute(ctx, "term-1", "teacher-1", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computeCalls, "after invalidation the block should recompute")
}

func TestAvailabilityCacheServiceNilCacheAlwaysComputes(t *testing.T) {
	svc := NewAvailabilityCacheService(nil, 0, nil)
	computeCalls := 0
	compute := func(ctx context.Context) ([]engine.CourseAssignment, error) {
		computeCalls++
		return nil, nil
	}

	ctx := context.Background()
	_, err := svc.GetOrCompute(ctx, "term-1", "teacher-1", compute)
	require.NoError(t, err)
	_, err = svc.GetOrCompute(ctx, "term-1", "teacher-1", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computeCalls)
}
