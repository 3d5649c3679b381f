package grading

import (
	"sort"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// groupKey identifies one aggregation group. Unused halves are nil.
type groupKey struct {
	learner *int64
	class   *int64
}

type keyFunc func(models.GradeRecord) (groupKey, bool)

// Engine groups grade records and computes weighted averages per group. It keeps no
// state between calls and never mutates its input.
type Engine struct {
	calc *Calculator
}

// NewEngine builds an engine around the given calculator.
func NewEngine(calc *Calculator) *Engine {
	return &Engine{calc: calc}
}

// Calculator exposes the weighting used by the engine.
func (e *Engine) Calculator() *Calculator {
	return e.calc
}

// AggregateByLearner returns one result per distinct learner.
func (e *Engine) AggregateByLearner(records []models.GradeRecord) []models.AggregateResult {
	return e.aggregate(records, func(r models.GradeRecord) (groupKey, bool) {
		return groupKey{learner: int64Ptr(r.LearnerID)}, true
	})
}

// AggregateByClass returns one result per distinct class.
func (e *Engine) AggregateByClass(records []models.GradeRecord) []models.AggregateResult {
	return e.aggregate(records, func(r models.GradeRecord) (groupKey, bool) {
		return groupKey{class: int64Ptr(r.ClassID)}, true
	})
}

// AggregateLearnerAcrossClasses returns one result per class the learner has records in.
func (e *Engine) AggregateLearnerAcrossClasses(records []models.GradeRecord, learnerID int64) []models.AggregateResult {
	return e.aggregate(records, func(r models.GradeRecord) (groupKey, bool) {
		if r.LearnerID != learnerID {
			return groupKey{}, false
		}
		return groupKey{learner: int64Ptr(r.LearnerID), class: int64Ptr(r.ClassID)}, true
	})
}

// AggregateClassAcrossLearners returns one result per learner with records in the class.
func (e *Engine) AggregateClassAcrossLearners(records []models.GradeRecord, classID int64) []models.AggregateResult {
	return e.aggregate(records, func(r models.GradeRecord) (groupKey, bool) {
		if r.ClassID != classID {
			return groupKey{}, false
		}
		return groupKey{learner: int64Ptr(r.LearnerID), class: int64Ptr(r.ClassID)}, true
	})
}

type group struct {
	key    groupKey
	scores []models.ScoreEntry
}

// aggregate merges every record of a group into one score set before bucketing.
func (e *Engine) aggregate(records []models.GradeRecord, key keyFunc) []models.AggregateResult {
	type mapKey struct {
		learner, class       int64
		hasLearner, hasClass bool
	}

	groups := make(map[mapKey]*group)
	for _, record := range records {
		k, ok := key(record)
		if !ok {
			continue
		}
		mk := mapKey{hasLearner: k.learner != nil, hasClass: k.class != nil}
		if k.learner != nil {
			mk.learner = *k.learner
		}
		if k.class != nil {
			mk.class = *k.class
		}
		g, exists := groups[mk]
		if !exists {
			g = &group{key: k}
			groups[mk] = g
		}
		g.scores = append(g.scores, record.Scores...)
	}

	results := make([]models.AggregateResult, 0, len(groups))
	for _, g := range groups {
		results = append(results, models.AggregateResult{
			LearnerID: g.key.learner,
			ClassID:   g.key.class,
			Avg:       e.calc.WeightedAverage(Bucket(g.scores)),
		})
	}
	sortResults(results)
	return results
}

func sortResults(results []models.AggregateResult) {
	sort.Slice(results, func(i, j int) bool {
		li, lj := derefOr(results[i].LearnerID), derefOr(results[j].LearnerID)
		if li != lj {
			return li < lj
		}
		return derefOr(results[i].ClassID) < derefOr(results[j].ClassID)
	})
}

func derefOr(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func int64Ptr(v int64) *int64 {
	return &v
}
