package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gradebook-api/internal/models"
)

// GradeRepository persists grade records and their score lists.
// Queries are written with '?' and rebound for the active driver.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

var gradeSchema = []string{
	`CREATE TABLE IF NOT EXISTS grade_records (
        id TEXT PRIMARY KEY,
        learner_id BIGINT NOT NULL,
        class_id BIGINT NOT NULL,
        created_at TIMESTAMP NOT NULL,
        updated_at TIMESTAMP NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS grade_scores (
        record_id TEXT NOT NULL REFERENCES grade_records(id) ON DELETE CASCADE,
        position INTEGER NOT NULL,
        type TEXT NOT NULL,
        score DOUBLE PRECISION NOT NULL,
        PRIMARY KEY (record_id, position)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_grade_records_class ON grade_records (class_id)`,
	`CREATE INDEX IF NOT EXISTS idx_grade_records_learner ON grade_records (learner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_grade_records_learner_class ON grade_records (learner_id, class_id)`,
}

// Migrate creates the grade tables and indexes when missing.
func (r *GradeRepository) Migrate(ctx context.Context) error {
	for _, stmt := range gradeSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate grades: %w", err)
		}
	}
	return nil
}

type scoreRow struct {
	RecordID string  `db:"record_id"`
	Position int     `db:"position"`
	Type     string  `db:"type"`
	Score    float64 `db:"score"`
}

// Create inserts a record and its scores in one transaction.
func (r *GradeRepository) Create(ctx context.Context, record *models.GradeRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Scores == nil {
		record.Scores = []models.ScoreEntry{}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	insert := tx.Rebind(`INSERT INTO grade_records (id, learner_id, class_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insert, record.ID, record.LearnerID, record.ClassID, record.CreatedAt, record.UpdatedAt); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert grade record: %w", err)
	}
	for i, entry := range record.Scores {
		if err := insertScore(ctx, tx, record.ID, i, entry); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade record: %w", err)
	}
	return nil
}

// FindByID returns a record with its scores in insertion order.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.GradeRecord, error) {
	var record models.GradeRecord
	query := r.db.Rebind(`SELECT id, learner_id, class_id, created_at, updated_at FROM grade_records WHERE id = ?`)
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	var rows []scoreRow
	scoreQuery := r.db.Rebind(`SELECT record_id, position, type, score FROM grade_scores WHERE record_id = ? ORDER BY position`)
	if err := r.db.SelectContext(ctx, &rows, scoreQuery, id); err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	record.Scores = make([]models.ScoreEntry, 0, len(rows))
	for _, row := range rows {
		record.Scores = append(record.Scores, models.ScoreEntry{Type: models.ScoreType(row.Type), Score: row.Score})
	}
	return &record, nil
}

// List returns records matching the filter ordered by creation.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeRecordFilter) ([]models.GradeRecord, error) {
	where, args := buildGradeFilter(filter, "r.")

	var records []models.GradeRecord
	query := r.db.Rebind(`SELECT r.id, r.learner_id, r.class_id, r.created_at, r.updated_at FROM grade_records r` + where + ` ORDER BY r.created_at, r.id`)
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list grade records: %w", err)
	}
	if len(records) == 0 {
		return []models.GradeRecord{}, nil
	}

	var rows []scoreRow
	scoreQuery := r.db.Rebind(`SELECT s.record_id, s.position, s.type, s.score FROM grade_scores s JOIN grade_records r ON r.id = s.record_id` + where + ` ORDER BY s.record_id, s.position`)
	if err := r.db.SelectContext(ctx, &rows, scoreQuery, args...); err != nil {
		return nil, fmt.Errorf("list grade scores: %w", err)
	}
	byRecord := make(map[string][]models.ScoreEntry, len(records))
	for _, row := range rows {
		byRecord[row.RecordID] = append(byRecord[row.RecordID], models.ScoreEntry{Type: models.ScoreType(row.Type), Score: row.Score})
	}
	for i := range records {
		records[i].Scores = byRecord[records[i].ID]
		if records[i].Scores == nil {
			records[i].Scores = []models.ScoreEntry{}
		}
	}
	return records, nil
}

// AddScore appends an entry to a record's score list.
func (r *GradeRepository) AddScore(ctx context.Context, id string, entry models.ScoreEntry) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := touch(ctx, tx, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	var next int
	query := tx.Rebind(`SELECT COALESCE(MAX(position), -1) + 1 FROM grade_scores WHERE record_id = ?`)
	if err := tx.GetContext(ctx, &next, query, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("next score position: %w", err)
	}
	if err := insertScore(ctx, tx, id, next, entry); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit score: %w", err)
	}
	return nil
}

// RemoveScore deletes every entry equal to the given one and reports how many went.
func (r *GradeRepository) RemoveScore(ctx context.Context, id string, entry models.ScoreEntry) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if err := touch(ctx, tx, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, err
	}
	query := tx.Rebind(`DELETE FROM grade_scores WHERE record_id = ? AND type = ? AND score = ?`)
	res, err := tx.ExecContext(ctx, query, id, string(entry.Type), entry.Score)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("remove score: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit score removal: %w", err)
	}
	removed, _ := res.RowsAffected()
	return removed, nil
}

// Delete removes a record and its scores.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	n, err := r.deleteWhere(ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByLearner removes every record of a learner.
func (r *GradeRepository) DeleteByLearner(ctx context.Context, learnerID int64) (int64, error) {
	return r.deleteWhere(ctx, "learner_id = ?", learnerID)
}

// DeleteByClass removes every record of a class.
func (r *GradeRepository) DeleteByClass(ctx context.Context, classID int64) (int64, error) {
	return r.deleteWhere(ctx, "class_id = ?", classID)
}

// UpdateClassID moves all records of one class onto another.
func (r *GradeRepository) UpdateClassID(ctx context.Context, from, to int64) (int64, error) {
	query := r.db.Rebind(`UPDATE grade_records SET class_id = ?, updated_at = ? WHERE class_id = ?`)
	res, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), from)
	if err != nil {
		return 0, fmt.Errorf("update class id: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks database connectivity.
func (r *GradeRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *GradeRepository) deleteWhere(ctx context.Context, cond string, arg interface{}) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	scores := tx.Rebind(`DELETE FROM grade_scores WHERE record_id IN (SELECT id FROM grade_records WHERE ` + cond + `)`)
	if _, err := tx.ExecContext(ctx, scores, arg); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("delete grade scores: %w", err)
	}
	records := tx.Rebind(`DELETE FROM grade_records WHERE ` + cond)
	res, err := tx.ExecContext(ctx, records, arg)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("delete grade records: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit grade delete: %w", err)
	}
	return res.RowsAffected()
}

func touch(ctx context.Context, tx *sqlx.Tx, id string) error {
	query := tx.Rebind(`UPDATE grade_records SET updated_at = ? WHERE id = ?`)
	res, err := tx.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch grade record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func insertScore(ctx context.Context, tx *sqlx.Tx, recordID string, position int, entry models.ScoreEntry) error {
	query := tx.Rebind(`INSERT INTO grade_scores (record_id, position, type, score) VALUES (?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, query, recordID, position, string(entry.Type), entry.Score); err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

func buildGradeFilter(filter models.GradeRecordFilter, alias string) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter.LearnerID != nil {
		conds = append(conds, alias+"learner_id = ?")
		args = append(args, *filter.LearnerID)
	}
	if filter.ClassID != nil {
		conds = append(conds, alias+"class_id = ?")
		args = append(args, *filter.ClassID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
