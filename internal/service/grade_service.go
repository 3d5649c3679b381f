package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/grading"
	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/validation"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
)

type gradeRepo interface {
	Create(ctx context.Context, record *models.GradeRecord) error
	FindByID(ctx context.Context, id string) (*models.GradeRecord, error)
	List(ctx context.Context, filter models.GradeRecordFilter) ([]models.GradeRecord, error)
	AddScore(ctx context.Context, id string, entry models.ScoreEntry) error
	RemoveScore(ctx context.Context, id string, entry models.ScoreEntry) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteByLearner(ctx context.Context, learnerID int64) (int64, error)
	DeleteByClass(ctx context.Context, classID int64) (int64, error)
	UpdateClassID(ctx context.Context, from, to int64) (int64, error)
}

// GradeEventPublisher announces record store changes.
type GradeEventPublisher interface {
	PublishGradeChanged(ctx context.Context, event models.GradeChangedEvent) error
}

// GradeService orchestrates grade record writes and lookups.
type GradeService struct {
	grades    gradeRepo
	schema    *validation.RecordValidator
	events    GradeEventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService. schema and events may be nil.
func NewGradeService(grades gradeRepo, schema *validation.RecordValidator, events GradeEventPublisher, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{grades: grades, schema: schema, events: events, validator: validate, logger: logger}
}

// Create validates a raw JSON document and stores it. Range violations accepted under
// the warn policy come back as warnings.
func (s *GradeService) Create(ctx context.Context, payload []byte) (*models.GradeRecord, []string, error) {
	var warnings []string
	if s.schema != nil {
		result, err := s.schema.Validate(payload)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
		}
		if !result.Accepted {
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidRecord, strings.Join(result.Violations, "; "))
		}
		warnings = result.Violations
	}

	var req dto.CreateGradeRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	raw := grading.RawRecord{LearnerID: req.LearnerID, StudentID: req.StudentID, ClassID: req.ClassID, Scores: req.Scores}
	record, err := raw.Record()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInvalidRecord.Code, appErrors.ErrInvalidRecord.Status, err.Error())
	}
	for i := range record.Scores {
		if err := s.validator.Struct(record.Scores[i]); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInvalidRecord.Code, appErrors.ErrInvalidRecord.Status, fmt.Sprintf("score %d is invalid", i))
		}
	}

	if err := s.grades.Create(ctx, &record); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade record")
	}
	s.publish(ctx, models.GradeChangedEvent{Action: models.GradeCreated, RecordID: record.ID, LearnerID: &record.LearnerID, ClassID: &record.ClassID, Affected: 1})
	return &record, warnings, nil
}

// Get returns a single record.
func (s *GradeService) Get(ctx context.Context, id string) (*models.GradeRecord, error) {
	record, err := s.grades.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade record")
	}
	return record, nil
}

// AddScore appends a score entry and returns the updated record.
func (s *GradeService) AddScore(ctx context.Context, id string, req dto.ScoreRequest) (*models.GradeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	if err := s.grades.AddScore(ctx, id, req.Entry()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add score")
	}
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, models.GradeChangedEvent{Action: models.GradeScoreAdded, RecordID: id, LearnerID: &record.LearnerID, ClassID: &record.ClassID, Affected: 1})
	return record, nil
}

// RemoveScore removes every entry equal to the given one.
func (s *GradeService) RemoveScore(ctx context.Context, id string, req dto.ScoreRequest) (*dto.ScoreRemovalResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	removed, err := s.grades.RemoveScore(ctx, id, req.Entry())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove score")
	}
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		s.publish(ctx, models.GradeChangedEvent{Action: models.GradeScoreRemoved, RecordID: id, LearnerID: &record.LearnerID, ClassID: &record.ClassID, Affected: removed})
	}
	return &dto.ScoreRemovalResult{Record: record, Removed: removed}, nil
}

// Delete removes one record.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	if err := s.grades.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade record")
	}
	s.publish(ctx, models.GradeChangedEvent{Action: models.GradeDeleted, RecordID: id, Affected: 1})
	return nil
}

// ListByLearner returns a learner's records, optionally narrowed to one class.
func (s *GradeService) ListByLearner(ctx context.Context, learnerID int64, classID *int64) ([]models.GradeRecord, error) {
	return s.list(ctx, models.GradeRecordFilter{LearnerID: &learnerID, ClassID: classID})
}

// ListByClass returns a class's records, optionally narrowed to one learner.
func (s *GradeService) ListByClass(ctx context.Context, classID int64, learnerID *int64) ([]models.GradeRecord, error) {
	return s.list(ctx, models.GradeRecordFilter{LearnerID: learnerID, ClassID: &classID})
}

// DeleteByLearner removes every record of a learner.
func (s *GradeService) DeleteByLearner(ctx context.Context, learnerID int64) (int64, error) {
	n, err := s.grades.DeleteByLearner(ctx, learnerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete learner records")
	}
	if n > 0 {
		s.publish(ctx, models.GradeChangedEvent{Action: models.GradeLearnerPurged, LearnerID: &learnerID, Affected: n})
	}
	return n, nil
}

// DeleteByClass removes every record of a class.
func (s *GradeService) DeleteByClass(ctx context.Context, classID int64) (int64, error) {
	n, err := s.grades.DeleteByClass(ctx, classID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class records")
	}
	if n > 0 {
		s.publish(ctx, models.GradeChangedEvent{Action: models.GradeClassPurged, ClassID: &classID, Affected: n})
	}
	return n, nil
}

// ReassignClass moves every record of class from onto the requested class.
func (s *GradeService) ReassignClass(ctx context.Context, from int64, req dto.ReassignClassRequest) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "class_id is required")
	}
	to := *req.ClassID
	if s.schema != nil {
		if result := s.schema.ValidateClassID(to); !result.Accepted {
			return 0, appErrors.Clone(appErrors.ErrInvalidRecord, strings.Join(result.Violations, "; "))
		}
	}
	n, err := s.grades.UpdateClassID(ctx, from, to)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reassign class")
	}
	if n > 0 {
		s.publish(ctx, models.GradeChangedEvent{Action: models.GradeClassReassigned, ClassID: &to, Affected: n})
	}
	return n, nil
}

func (s *GradeService) list(ctx context.Context, filter models.GradeRecordFilter) ([]models.GradeRecord, error) {
	records, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade records")
	}
	return records, nil
}

// publish never fails the write that triggered it; stale caches expire on their own.
func (s *GradeService) publish(ctx context.Context, event models.GradeChangedEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()
	if err := s.events.PublishGradeChanged(ctx, event); err != nil {
		s.logger.Warn("publish grade change", zap.String("action", string(event.Action)), zap.Error(err))
	}
}
