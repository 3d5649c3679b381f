package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

type countingReader struct {
	records []models.GradeRecord
	calls   int
	err     error
	filters []models.GradeRecordFilter
	onList  func()
}

func (c *countingReader) List(_ context.Context, filter models.GradeRecordFilter) ([]models.GradeRecord, error) {
	c.calls++
	c.filters = append(c.filters, filter)
	if c.onList != nil {
		c.onList()
	}
	if c.err != nil {
		return nil, c.err
	}
	out := []models.GradeRecord{}
	for _, r := range c.records {
		if filter.LearnerID != nil && r.LearnerID != *filter.LearnerID {
			continue
		}
		if filter.ClassID != nil && r.ClassID != *filter.ClassID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type stubCacheRepo struct {
	store   map[string][]byte
	deleted []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
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

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deleted = append(s.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

func analyticsFixture() []models.GradeRecord {
	return []models.GradeRecord{
		{ID: "1", LearnerID: 1, ClassID: 10, Scores: []models.ScoreEntry{{Type: "exam", Score: 80}, {Type: "quiz", Score: 70}, {Type: "homework", Score: 90}, {Type: "homework", Score: 100}}},
		{ID: "2", LearnerID: 1, ClassID: 20, Scores: []models.ScoreEntry{{Type: "exam", Score: 60}}},
		{ID: "3", LearnerID: 2, ClassID: 10, Scores: []models.ScoreEntry{{Type: "exam", Score: 100}, {Type: "quiz", Score: 100}, {Type: "homework", Score: 100}}},
	}
}

func newAnalyticsForTest(t *testing.T, reader *countingReader, cacheRepo CacheRepository) *AnalyticsService {
	t.Helper()
	calc, err := grading.NewCalculator(grading.DefaultWeights)
	require.NoError(t, err)
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), cacheRepo != nil)
	return NewAnalyticsService(reader, grading.NewEngine(calc), cache, metrics, AnalyticsDefaults{Threshold: 70}, zap.NewNop())
}

func TestAnalyticsServiceLearnerAveragesCaching(t *testing.T) {
	reader := &countingReader{records: analyticsFixture()}
	svc := newAnalyticsForTest(t, reader, &stubCacheRepo{})
	ctx := context.Background()

	first, hit, err := svc.LearnerAverages(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, first, 2)
	assert.Equal(t, 1, reader.calls)

	second, hit, err := svc.LearnerAverages(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, first, second)

	require.NoError(t, svc.InvalidateCache(ctx))
	_, hit, err = svc.LearnerAverages(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, reader.calls)

	snapshot := svc.SystemMetrics()
	assert.Equal(t, uint64(2), snapshot.AggregationsTotal)
	assert.Equal(t, uint64(1), snapshot.CacheHits)
}

func TestAnalyticsServiceSkipsCachingViewsRacingAnInvalidation(t *testing.T) {
	reader := &countingReader{records: analyticsFixture()}
	cacheRepo := &stubCacheRepo{}
	svc := newAnalyticsForTest(t, reader, cacheRepo)
	ctx := context.Background()

	// a grade write lands while the first read is still in flight
	reader.onList = func() {
		reader.onList = nil
		require.NoError(t, svc.InvalidateCache(ctx))
	}
	_, hit, err := svc.ClassAverages(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, cacheRepo.store)

	_, hit, err = svc.ClassAverages(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, reader.calls)

	_, hit, err = svc.ClassAverages(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, reader.calls)
}

func TestAnalyticsServiceScopedViewsFilterStore(t *testing.T) {
	reader := &countingReader{records: analyticsFixture()}
	svc := newAnalyticsForTest(t, reader, nil)

	perClass, _, err := svc.LearnerAcrossClasses(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, perClass, 2)
	require.NotNil(t, reader.filters[0].LearnerID)
	assert.Equal(t, int64(1), *reader.filters[0].LearnerID)

	perLearner, _, err := svc.ClassAcrossLearners(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, perLearner, 2)
	require.NotNil(t, perLearner[1].Avg)
	assert.InDelta(t, 100.0, *perLearner[1].Avg, 1e-9)

	classes, _, err := svc.ClassAverages(context.Background())
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}

func TestAnalyticsServicePassRateDefaultsAndOverrides(t *testing.T) {
	reader := &countingReader{records: analyticsFixture()}
	svc := newAnalyticsForTest(t, reader, nil)
	ctx := context.Background()

	// learner 1 averages 75 across classes, learner 2 averages 100
	overall, _, err := svc.OverallPassRate(ctx, models.CohortQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, overall.QualifyingLearners)
	assert.Equal(t, string(grading.ComparisonStrict), overall.Comparison)
	assert.Nil(t, overall.Groups)

	threshold := 75.0
	strict, _, err := svc.OverallPassRate(ctx, models.CohortQuery{Threshold: &threshold})
	require.NoError(t, err)
	assert.Equal(t, 1, strict.QualifyingLearners)

	inclusive, _, err := svc.OverallPassRate(ctx, models.CohortQuery{Threshold: &threshold, Comparison: ">=", Detail: true})
	require.NoError(t, err)
	assert.Equal(t, 2, inclusive.QualifyingLearners)
	assert.Len(t, inclusive.Groups, 2)

	byClass, _, err := svc.ClassPassRate(ctx, 10, models.CohortQuery{Detail: true})
	require.NoError(t, err)
	assert.Equal(t, string(grading.ComparisonInclusive), byClass.Comparison)
	require.NotNil(t, byClass.ClassID)
	assert.Equal(t, int64(10), *byClass.ClassID)
	assert.Equal(t, 2, byClass.TotalLearners)
}

func TestAnalyticsServiceRejectsBadCohortQuery(t *testing.T) {
	svc := newAnalyticsForTest(t, &countingReader{}, nil)

	_, _, err := svc.OverallPassRate(context.Background(), models.CohortQuery{Comparison: "approximately"})
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAnalyticsServiceErrorPassthrough(t *testing.T) {
	reader := &countingReader{err: assert.AnError}
	svc := newAnalyticsForTest(t, reader, nil)

	_, _, err := svc.ClassAverages(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
