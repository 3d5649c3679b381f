package grading

import (
	"fmt"
	"strings"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// Comparison selects how a group average is compared with the pass threshold.
type Comparison string

const (
	// ComparisonStrict qualifies averages strictly above the threshold.
	ComparisonStrict Comparison = "strict"
	// ComparisonInclusive qualifies averages at or above the threshold.
	ComparisonInclusive Comparison = "inclusive"
)

// ParseComparison maps a config or query value onto a Comparison.
func ParseComparison(raw string) (Comparison, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "strict", "gt", ">":
		return ComparisonStrict, nil
	case "inclusive", "gte", ">=":
		return ComparisonInclusive, nil
	default:
		return "", fmt.Errorf("unknown comparison %q", raw)
	}
}

// Passes reports whether avg clears threshold. A missing average never passes.
func (c Comparison) Passes(avg *float64, threshold float64) bool {
	if avg == nil {
		return false
	}
	if c == ComparisonInclusive {
		return *avg >= threshold
	}
	return *avg > threshold
}

// CohortPassRateOverall counts learners whose overall average clears the threshold.
// The population is every distinct learner in records.
func (e *Engine) CohortPassRateOverall(records []models.GradeRecord, threshold float64, cmp Comparison) models.CohortReport {
	groups := e.AggregateByLearner(records)
	return buildReport(distinctLearners(records), groups, threshold, cmp)
}

// CohortPassRateByClass counts learners of one class whose average in that class
// clears the threshold. The population is the distinct learners of that class.
func (e *Engine) CohortPassRateByClass(records []models.GradeRecord, classID int64, threshold float64, cmp Comparison) models.CohortReport {
	scoped := make([]models.GradeRecord, 0, len(records))
	for _, r := range records {
		if r.ClassID == classID {
			scoped = append(scoped, r)
		}
	}
	groups := e.AggregateClassAcrossLearners(scoped, classID)
	report := buildReport(distinctLearners(scoped), groups, threshold, cmp)
	report.ClassID = int64Ptr(classID)
	return report
}

func buildReport(total int, groups []models.AggregateResult, threshold float64, cmp Comparison) models.CohortReport {
	qualifying := 0
	for _, g := range groups {
		if cmp.Passes(g.Avg, threshold) {
			qualifying++
		}
	}
	report := models.CohortReport{
		TotalLearners:      total,
		QualifyingLearners: qualifying,
		Threshold:          threshold,
		Comparison:         string(cmp),
		Groups:             groups,
	}
	if total > 0 {
		pct := float64(qualifying) / float64(total) * 100
		report.Percentage = &pct
	}
	return report
}

func distinctLearners(records []models.GradeRecord) int {
	seen := make(map[int64]struct{}, len(records))
	for _, r := range records {
		seen[r.LearnerID] = struct{}{}
	}
	return len(seen)
}
