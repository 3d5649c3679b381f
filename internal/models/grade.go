package models

import "time"

// ScoreType labels a single score entry.
type ScoreType string

const (
	// ScoreTypeExam marks exam scores.
	ScoreTypeExam ScoreType = "exam"
	// ScoreTypeQuiz marks quiz scores.
	ScoreTypeQuiz ScoreType = "quiz"
	// ScoreTypeHomework marks homework scores.
	ScoreTypeHomework ScoreType = "homework"
)

// ScoreEntry is one typed score inside a grade record. Types outside the three
// weighted ones are stored as given and ignored by aggregation.
type ScoreEntry struct {
	Type  ScoreType `db:"type" json:"type" yaml:"type" validate:"required"`
	Score float64   `db:"score" json:"score" yaml:"score"`
}

// GradeRecord holds one learner's scores for one class.
type GradeRecord struct {
	ID        string       `db:"id" json:"id" yaml:"id"`
	LearnerID int64        `db:"learner_id" json:"learner_id" yaml:"learner_id"`
	ClassID   int64        `db:"class_id" json:"class_id" yaml:"class_id"`
	Scores    []ScoreEntry `json:"scores" yaml:"scores"`
	CreatedAt time.Time    `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at" yaml:"-"`
}

// GradeRecordFilter scopes record store queries. Nil fields are not applied.
type GradeRecordFilter struct {
	LearnerID *int64
	ClassID   *int64
}

// Matches reports whether the record falls inside the filter.
func (f GradeRecordFilter) Matches(r GradeRecord) bool {
	if f.LearnerID != nil && r.LearnerID != *f.LearnerID {
		return false
	}
	return f.ClassID == nil || r.ClassID == *f.ClassID
}

// AggregateResult is the weighted average of one group. Key fields that are not
// part of the grouping stay nil. Avg is nil when the group has no scored work.
type AggregateResult struct {
	LearnerID *int64   `json:"learner_id,omitempty" yaml:"learner_id,omitempty"`
	ClassID   *int64   `json:"class_id,omitempty" yaml:"class_id,omitempty"`
	Avg       *float64 `json:"avg" yaml:"avg"`
}

// CohortReport summarises how many learners clear a threshold.
type CohortReport struct {
	TotalLearners      int               `json:"total_learners" yaml:"total_learners"`
	QualifyingLearners int               `json:"qualifying_learners" yaml:"qualifying_learners"`
	Percentage         *float64          `json:"percentage" yaml:"percentage"`
	Threshold          float64           `json:"threshold" yaml:"threshold"`
	Comparison         string            `json:"comparison" yaml:"comparison"`
	ClassID            *int64            `json:"class_id,omitempty" yaml:"class_id,omitempty"`
	Groups             []AggregateResult `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// RecordIssue describes a record that was skipped or flagged during ingestion.
type RecordIssue struct {
	Index    int    `json:"index"`
	RecordID string `json:"record_id,omitempty"`
	Reason   string `json:"reason"`
}
