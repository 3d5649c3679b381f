package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gradebook-api/internal/models"
)

func newGradeMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradeRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grade_records").
		WithArgs(sqlmock.AnyArg(), int64(2), int64(10), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO grade_scores").
		WithArgs(sqlmock.AnyArg(), 0, "exam", 80.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO grade_scores").
		WithArgs(sqlmock.AnyArg(), 1, "quiz", 70.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := &models.GradeRecord{LearnerID: 2, ClassID: 10, Scores: []models.ScoreEntry{
		{Type: models.ScoreTypeExam, Score: 80},
		{Type: models.ScoreTypeQuiz, Score: 70},
	}}
	require.NoError(t, repo.Create(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grade_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO grade_scores").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.GradeRecord{LearnerID: 1, ClassID: 1, Scores: []models.ScoreEntry{{Type: "exam", Score: 1}}})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, learner_id, class_id, created_at, updated_at FROM grade_records WHERE id = ?")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "learner_id", "class_id", "created_at", "updated_at"}).AddRow("rec-1", 1, 10, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT record_id, position, type, score FROM grade_scores WHERE record_id = ? ORDER BY position")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"record_id", "position", "type", "score"}).
			AddRow("rec-1", 0, "exam", 80.0).
			AddRow("rec-1", 1, "project", 5.0))

	record, err := repo.FindByID(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), record.ClassID)
	assert.Equal(t, []models.ScoreEntry{{Type: "exam", Score: 80}, {Type: "project", Score: 5}}, record.Scores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery("FROM grade_records WHERE id").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestGradeRepositoryListWithFilter(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	now := time.Now()
	learner, class := int64(1), int64(10)
	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_records r WHERE r.learner_id = ? AND r.class_id = ? ORDER BY r.created_at, r.id")).
		WithArgs(learner, class).
		WillReturnRows(sqlmock.NewRows([]string{"id", "learner_id", "class_id", "created_at", "updated_at"}).
			AddRow("a", 1, 10, now, now).
			AddRow("b", 1, 10, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_scores s JOIN grade_records r ON r.id = s.record_id WHERE r.learner_id = ? AND r.class_id = ?")).
		WithArgs(learner, class).
		WillReturnRows(sqlmock.NewRows([]string{"record_id", "position", "type", "score"}).
			AddRow("a", 0, "exam", 90.0).
			AddRow("a", 1, "quiz", 60.0))

	records, err := repo.List(context.Background(), models.GradeRecordFilter{LearnerID: &learner, ClassID: &class})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[0].Scores, 2)
	assert.NotNil(t, records[1].Scores)
	assert.Empty(t, records[1].Scores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryListEmpty(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM grade_records r ORDER BY r.created_at, r.id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "learner_id", "class_id", "created_at", "updated_at"}))

	records, err := repo.List(context.Background(), models.GradeRecordFilter{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryAddScore(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE grade_records SET updated_at").WithArgs(sqlmock.AnyArg(), "rec-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(position), -1) + 1 FROM grade_scores")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec("INSERT INTO grade_scores").WithArgs("rec-1", 3, "homework", 95.0).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.AddScore(context.Background(), "rec-1", models.ScoreEntry{Type: models.ScoreTypeHomework, Score: 95}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryAddScoreMissingRecord(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE grade_records SET updated_at").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AddScore(context.Background(), "missing", models.ScoreEntry{Type: "exam", Score: 1})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryRemoveScore(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE grade_records SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grade_scores WHERE record_id = ? AND type = ? AND score = ?")).
		WithArgs("rec-1", "quiz", 70.0).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	removed, err := repo.RemoveScore(context.Background(), "rec-1", models.ScoreEntry{Type: models.ScoreTypeQuiz, Score: 70})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryDeleteByLearner(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grade_scores WHERE record_id IN (SELECT id FROM grade_records WHERE learner_id = ?)")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grade_records WHERE learner_id = ?")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := repo.DeleteByLearner(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM grade_scores").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM grade_records WHERE id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	assert.ErrorIs(t, repo.Delete(context.Background(), "gone"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryUpdateClassID(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE grade_records SET class_id = ?, updated_at = ? WHERE class_id = ?")).
		WithArgs(int64(11), sqlmock.AnyArg(), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.UpdateClassID(context.Background(), 10, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryMigrate(t *testing.T) {
	db, mock, cleanup := newGradeMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	for range gradeSchema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
