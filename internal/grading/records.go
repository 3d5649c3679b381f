package grading

import (
	"errors"
	"fmt"

	"github.com/noah-isme/gradebook-api/internal/models"
)

var (
	// ErrInvalidRecord marks a record missing learner_id, class_id or scores.
	ErrInvalidRecord = errors.New("invalid grade record")
	// ErrInvalidWeights marks a weight table the calculator cannot use.
	ErrInvalidWeights = errors.New("invalid weights")
)

// RawRecord is a grade record as decoded from an untrusted document, where any field
// may be missing.
type RawRecord struct {
	ID        string               `json:"id" yaml:"id"`
	LearnerID *int64               `json:"learner_id" yaml:"learner_id"`
	StudentID *int64               `json:"student_id,omitempty" yaml:"student_id,omitempty"`
	ClassID   *int64               `json:"class_id" yaml:"class_id"`
	Scores    *[]models.ScoreEntry `json:"scores" yaml:"scores"`
}

// Record converts the raw record, applying the legacy student_id alias.
func (r RawRecord) Record() (models.GradeRecord, error) {
	learner := r.LearnerID
	if learner == nil {
		learner = r.StudentID
	}
	switch {
	case learner == nil:
		return models.GradeRecord{}, fmt.Errorf("%w: learner_id missing", ErrInvalidRecord)
	case r.ClassID == nil:
		return models.GradeRecord{}, fmt.Errorf("%w: class_id missing", ErrInvalidRecord)
	case r.Scores == nil:
		return models.GradeRecord{}, fmt.Errorf("%w: scores missing", ErrInvalidRecord)
	}
	return models.GradeRecord{
		ID:        r.ID,
		LearnerID: *learner,
		ClassID:   *r.ClassID,
		Scores:    append([]models.ScoreEntry(nil), (*r.Scores)...),
	}, nil
}

// Sanitize keeps every well-formed record and reports the rest, so one bad row
// cannot fail a whole cohort computation.
func Sanitize(raw []RawRecord) ([]models.GradeRecord, []models.RecordIssue) {
	records := make([]models.GradeRecord, 0, len(raw))
	var issues []models.RecordIssue
	for i, r := range raw {
		record, err := r.Record()
		if err != nil {
			issues = append(issues, models.RecordIssue{Index: i, RecordID: r.ID, Reason: err.Error()})
			continue
		}
		records = append(records, record)
	}
	return records, issues
}
