package service

import (
	"context"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

// gradeReader is the slice of the record store the analytics views need.
type gradeReader interface {
	List(ctx context.Context, filter models.GradeRecordFilter) ([]models.GradeRecord, error)
}

// AnalyticsDefaults are applied when a cohort query leaves a parameter unset.
type AnalyticsDefaults struct {
	Threshold         float64
	OverallComparison grading.Comparison
	ClassComparison   grading.Comparison
}

// AnalyticsService computes weighted averages and pass-rate reports over the record
// store, caching each view until the next grade change.
type AnalyticsService struct {
	repo     gradeReader
	engine   *grading.Engine
	cache    *CacheService
	metrics  *MetricsService
	defaults AnalyticsDefaults
	logger   *zap.Logger

	// generation advances on every invalidation; a view computed under an older
	// generation is never left in the cache.
	generation atomic.Uint64
}

// NewAnalyticsService constructs an analytics service. cache and metrics may be nil.
func NewAnalyticsService(repo gradeReader, engine *grading.Engine, cache *CacheService, metrics *MetricsService, defaults AnalyticsDefaults, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.OverallComparison == "" {
		defaults.OverallComparison = grading.ComparisonStrict
	}
	if defaults.ClassComparison == "" {
		defaults.ClassComparison = grading.ComparisonInclusive
	}
	return &AnalyticsService{repo: repo, engine: engine, cache: cache, metrics: metrics, defaults: defaults, logger: logger}
}

// Defaults returns the configured cohort defaults.
func (s *AnalyticsService) Defaults() AnalyticsDefaults {
	return s.defaults
}

// LearnerAverages returns one weighted average per learner. The boolean reports a cache hit.
func (s *AnalyticsService) LearnerAverages(ctx context.Context) ([]models.AggregateResult, bool, error) {
	return cachedView(ctx, s, analyticsKey("learners"), "by_learner", models.GradeRecordFilter{}, s.engine.AggregateByLearner)
}

// ClassAverages returns one weighted average per class.
func (s *AnalyticsService) ClassAverages(ctx context.Context) ([]models.AggregateResult, bool, error) {
	return cachedView(ctx, s, analyticsKey("classes"), "by_class", models.GradeRecordFilter{}, s.engine.AggregateByClass)
}

// LearnerAcrossClasses returns one average per class the learner has records in.
func (s *AnalyticsService) LearnerAcrossClasses(ctx context.Context, learnerID int64) ([]models.AggregateResult, bool, error) {
	compute := func(records []models.GradeRecord) []models.AggregateResult {
		return s.engine.AggregateLearnerAcrossClasses(records, learnerID)
	}
	key := analyticsKey("learner", strconv.FormatInt(learnerID, 10), "classes")
	return cachedView(ctx, s, key, "learner_across_classes", models.GradeRecordFilter{LearnerID: &learnerID}, compute)
}

// ClassAcrossLearners returns one average per learner with records in the class.
func (s *AnalyticsService) ClassAcrossLearners(ctx context.Context, classID int64) ([]models.AggregateResult, bool, error) {
	compute := func(records []models.GradeRecord) []models.AggregateResult {
		return s.engine.AggregateClassAcrossLearners(records, classID)
	}
	key := analyticsKey("class", strconv.FormatInt(classID, 10), "learners")
	return cachedView(ctx, s, key, "class_across_learners", models.GradeRecordFilter{ClassID: &classID}, compute)
}

// OverallPassRate reports how many learners clear the threshold across all classes.
func (s *AnalyticsService) OverallPassRate(ctx context.Context, query models.CohortQuery) (*models.CohortReport, bool, error) {
	threshold, cmp, err := s.resolveCohort(query, s.defaults.OverallComparison)
	if err != nil {
		return nil, false, err
	}
	compute := func(records []models.GradeRecord) models.CohortReport {
		return s.engine.CohortPassRateOverall(records, threshold, cmp)
	}
	key := analyticsKey("passrate", "overall", formatThreshold(threshold), string(cmp))
	report, hit, err := cachedView(ctx, s, key, "passrate_overall", models.GradeRecordFilter{}, compute)
	if err != nil {
		return nil, false, err
	}
	return shapeReport(report, query.Detail), hit, nil
}

// ClassPassRate reports how many learners of one class clear the threshold.
func (s *AnalyticsService) ClassPassRate(ctx context.Context, classID int64, query models.CohortQuery) (*models.CohortReport, bool, error) {
	threshold, cmp, err := s.resolveCohort(query, s.defaults.ClassComparison)
	if err != nil {
		return nil, false, err
	}
	compute := func(records []models.GradeRecord) models.CohortReport {
		return s.engine.CohortPassRateByClass(records, classID, threshold, cmp)
	}
	key := analyticsKey("passrate", "class", strconv.FormatInt(classID, 10), formatThreshold(threshold), string(cmp))
	report, hit, err := cachedView(ctx, s, key, "passrate_class", models.GradeRecordFilter{ClassID: &classID}, compute)
	if err != nil {
		return nil, false, err
	}
	return shapeReport(report, query.Detail), hit, nil
}

// InvalidateCache drops every cached view.
func (s *AnalyticsService) InvalidateCache(ctx context.Context) error {
	s.generation.Add(1)
	return s.cache.InvalidateAnalytics(ctx)
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

func (s *AnalyticsService) resolveCohort(query models.CohortQuery, fallback grading.Comparison) (float64, grading.Comparison, error) {
	threshold := s.defaults.Threshold
	if query.Threshold != nil {
		threshold = *query.Threshold
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return 0, "", appErrors.Clone(appErrors.ErrValidation, "threshold must be a finite number")
	}
	cmp := fallback
	if query.Comparison != "" {
		parsed, err := grading.ParseComparison(query.Comparison)
		if err != nil {
			return 0, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "comparison must be strict or inclusive")
		}
		cmp = parsed
	}
	return threshold, cmp, nil
}

// cachedView loads records, runs compute and caches the result. Cache read failures
// degrade to a miss. The result is only cached when no invalidation ran while it
// was being computed.
func cachedView[T any](ctx context.Context, s *AnalyticsService, key, operation string, filter models.GradeRecordFilter, compute func([]models.GradeRecord) T) (T, bool, error) {
	var cached T
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("analytics cache read", zap.String("key", key), zap.Error(err))
	} else if hit {
		return cached, true, nil
	}

	generation := s.generation.Load()
	start := time.Now()
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		var zero T
		return zero, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}
	s.metrics.ObserveDBQuery("grades_"+operation, time.Since(start))

	start = time.Now()
	result := compute(records)
	s.metrics.ObserveAggregation(operation, len(records), time.Since(start))

	if s.generation.Load() != generation {
		return result, false, nil
	}
	if err := s.cache.Set(ctx, key, result, 0); err != nil {
		s.logger.Warn("analytics cache write", zap.String("key", key), zap.Error(err))
	}
	// an invalidation between the check and the write may have missed this key
	if s.generation.Load() != generation {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("analytics cache evict", zap.String("key", key), zap.Error(err))
		}
	}
	return result, false, nil
}

func shapeReport(report models.CohortReport, detail bool) *models.CohortReport {
	if !detail {
		report.Groups = nil
	}
	return &report
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
