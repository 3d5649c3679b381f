package grading

import "github.com/noah-isme/gradebook-api/internal/models"

// Buckets holds the weighted score types of a score set, one slice per type.
type Buckets struct {
	Exam     []float64
	Quiz     []float64
	Homework []float64
}

// Len returns the number of bucketed scores.
func (b Buckets) Len() int {
	return len(b.Exam) + len(b.Quiz) + len(b.Homework)
}

// Bucket partitions scores by type in a single pass. Unrecognised types are dropped.
func Bucket(scores []models.ScoreEntry) Buckets {
	var b Buckets
	for _, entry := range scores {
		switch entry.Type {
		case models.ScoreTypeExam:
			b.Exam = append(b.Exam, entry.Score)
		case models.ScoreTypeQuiz:
			b.Quiz = append(b.Quiz, entry.Score)
		case models.ScoreTypeHomework:
			b.Homework = append(b.Homework, entry.Score)
		}
	}
	return b
}
