package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingCacheRepo struct{}

func (failingCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("connection reset")
}

func (failingCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	return errors.New("connection reset")
}

func (failingCacheRepo) DeleteByPattern(context.Context, string) error {
	return errors.New("connection reset")
}

func TestAnalyticsKey(t *testing.T) {
	assert.Equal(t, "gradebook:analytics:learners", analyticsKey("learners"))
	assert.Equal(t, "gradebook:analytics:passrate:-:70", analyticsKey("passrate", "", "70"))
	assert.Equal(t, "gradebook:analytics:a|b", analyticsKey("a:b"))
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, nil, 0, zap.NewNop(), false)
	ctx := context.Background()

	assert.False(t, svc.Enabled())
	require.NoError(t, svc.Set(ctx, "k", 1, 0))
	assert.Empty(t, repo.store)

	var out int
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(&stubCacheRepo{}, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out []int
	hit, err := svc.Get(ctx, analyticsKey("classes"), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, analyticsKey("classes"), []int{1, 2}, 0))
	hit, err = svc.Get(ctx, analyticsKey("classes"), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []int{1, 2}, out)

	require.NoError(t, svc.InvalidateAnalytics(ctx))
	hit, _ = svc.Get(ctx, analyticsKey("classes"), &out)
	assert.False(t, hit)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(2), snapshot.CacheMisses)
	assert.InDelta(t, 1.0/3.0, snapshot.CacheHitRatio, 1e-9)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	svc := NewCacheService(failingCacheRepo{}, nil, 0, zap.NewNop(), true)
	ctx := context.Background()

	var out int
	hit, err := svc.Get(ctx, "k", &out)
	assert.Error(t, err)
	assert.False(t, hit)
	assert.Error(t, svc.Set(ctx, "k", 1, 0))
	assert.Error(t, svc.InvalidateAnalytics(ctx))
}
