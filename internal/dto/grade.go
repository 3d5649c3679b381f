package dto

import "github.com/noah-isme/gradebook-api/internal/models"

// CreateGradeRequest captures POST /grades. student_id is accepted as a legacy alias
// for learner_id.
type CreateGradeRequest struct {
	LearnerID *int64               `json:"learner_id"`
	StudentID *int64               `json:"student_id,omitempty"`
	ClassID   *int64               `json:"class_id"`
	Scores    *[]models.ScoreEntry `json:"scores"`
}

// ScoreRequest captures PATCH /grades/:id/add and /remove.
type ScoreRequest struct {
	Type  string   `json:"type" validate:"required"`
	Score *float64 `json:"score" validate:"required"`
}

// Entry converts the request into a score entry.
func (r ScoreRequest) Entry() models.ScoreEntry {
	var score float64
	if r.Score != nil {
		score = *r.Score
	}
	return models.ScoreEntry{Type: models.ScoreType(r.Type), Score: score}
}

// ReassignClassRequest captures PATCH /grades/class/:id.
type ReassignClassRequest struct {
	ClassID *int64 `json:"class_id" validate:"required"`
}

// BulkResult reports how many records a bulk operation touched.
type BulkResult struct {
	Affected int64 `json:"affected"`
}

// ScoreRemovalResult reports a record after a removal along with the count removed.
type ScoreRemovalResult struct {
	Record  *models.GradeRecord `json:"record"`
	Removed int64               `json:"removed"`
}

// GradeCreateResponse wraps a stored record with any soft validation warnings.
type GradeCreateResponse struct {
	Record   *models.GradeRecord `json:"record"`
	Warnings []string            `json:"warnings,omitempty"`
}
