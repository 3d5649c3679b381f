package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/models"
)

func TestCohortPassRateOverall(t *testing.T) {
	engine := newTestEngine(t)

	// learner 1 -> 75, learner 2 -> 100, learner 3 -> no scored work
	report := engine.CohortPassRateOverall(sampleRecords(), 70, ComparisonStrict)
	assert.Equal(t, 3, report.TotalLearners)
	assert.Equal(t, 2, report.QualifyingLearners)
	require.NotNil(t, report.Percentage)
	assert.InDelta(t, 200.0/3.0, *report.Percentage, 1e-9)
	assert.Equal(t, "strict", report.Comparison)
	assert.Nil(t, report.ClassID)
}

func TestCohortPassRateComparisonBoundary(t *testing.T) {
	engine := newTestEngine(t)
	records := []models.GradeRecord{
		{LearnerID: 1, ClassID: 5, Scores: scores("exam", 100, "quiz", 100)},
		{LearnerID: 2, ClassID: 5, Scores: scores("exam", 60)},
	}

	strict := engine.CohortPassRateOverall(records, 80, ComparisonStrict)
	inclusive := engine.CohortPassRateOverall(records, 80, ComparisonInclusive)
	assert.Equal(t, 0, strict.QualifyingLearners)
	assert.Equal(t, 1, inclusive.QualifyingLearners)
}

func TestCohortPassRateOverallNoLearners(t *testing.T) {
	engine := newTestEngine(t)

	report := engine.CohortPassRateOverall(nil, 70, ComparisonStrict)
	assert.Equal(t, 0, report.TotalLearners)
	assert.Equal(t, 0, report.QualifyingLearners)
	assert.Nil(t, report.Percentage, "no data is not 0%")
}

func TestCohortPassRateByClass(t *testing.T) {
	engine := newTestEngine(t)

	report := engine.CohortPassRateByClass(sampleRecords(), 10, 80, ComparisonInclusive)
	assert.Equal(t, 3, report.TotalLearners)
	assert.Equal(t, 2, report.QualifyingLearners)
	require.NotNil(t, report.ClassID)
	assert.Equal(t, int64(10), *report.ClassID)
	assert.Len(t, report.Groups, 3)

	empty := engine.CohortPassRateByClass(sampleRecords(), 99, 80, ComparisonInclusive)
	assert.Equal(t, 0, empty.TotalLearners)
	assert.Nil(t, empty.Percentage)
	assert.Empty(t, empty.Groups)
}

func TestParseComparison(t *testing.T) {
	for raw, want := range map[string]Comparison{
		"strict":    ComparisonStrict,
		">":         ComparisonStrict,
		"Inclusive": ComparisonInclusive,
		" gte ":     ComparisonInclusive,
	} {
		got, err := ParseComparison(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := ParseComparison("maybe")
	assert.Error(t, err)
}

func TestSanitizeSkipsMalformedRecords(t *testing.T) {
	learner, class := int64(4), int64(12)
	legacy := int64(9)
	list := scores("exam", 90)
	raw := []RawRecord{
		{ID: "ok", LearnerID: &learner, ClassID: &class, Scores: &list},
		{ID: "no-class", LearnerID: &learner, Scores: &list},
		{ID: "legacy", StudentID: &legacy, ClassID: &class, Scores: &list},
		{ID: "no-scores", LearnerID: &learner, ClassID: &class},
	}

	records, issues := Sanitize(raw)
	require.Len(t, records, 2)
	assert.Equal(t, int64(9), records[1].LearnerID)
	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Index)
	assert.Equal(t, "no-scores", issues[1].RecordID)

	_, err := raw[1].Record()
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
