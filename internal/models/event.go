package models

import "time"

// GradeChangeAction names the mutation behind a GradeChangedEvent.
type GradeChangeAction string

const (
	GradeCreated         GradeChangeAction = "created"
	GradeScoreAdded      GradeChangeAction = "score_added"
	GradeScoreRemoved    GradeChangeAction = "score_removed"
	GradeDeleted         GradeChangeAction = "deleted"
	GradeLearnerPurged   GradeChangeAction = "learner_purged"
	GradeClassPurged     GradeChangeAction = "class_purged"
	GradeClassReassigned GradeChangeAction = "class_reassigned"
)

// GradeChangedEvent is published after any write to the record store.
type GradeChangedEvent struct {
	ID         string            `json:"id"`
	Action     GradeChangeAction `json:"action"`
	RecordID   string            `json:"record_id,omitempty"`
	LearnerID  *int64            `json:"learner_id,omitempty"`
	ClassID    *int64            `json:"class_id,omitempty"`
	Affected   int64             `json:"affected"`
	OccurredAt time.Time         `json:"occurred_at"`
}
