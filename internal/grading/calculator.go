package grading

import (
	"fmt"
	"math"
)

// Weights assigns the importance of each score bucket.
type Weights struct {
	Exam     float64 `json:"exam"`
	Quiz     float64 `json:"quiz"`
	Homework float64 `json:"homework"`
}

// DefaultWeights is the standard grading policy: exams 50%, quizzes 30%, homework 20%.
var DefaultWeights = Weights{Exam: 0.5, Quiz: 0.3, Homework: 0.2}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{{"exam", w.Exam}, {"quiz", w.Quiz}, {"homework", w.Homework}}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) || c.value < 0 {
			return fmt.Errorf("%w: %s weight %v", ErrInvalidWeights, c.name, c.value)
		}
	}
	return nil
}

// Calculator combines bucket means into a weighted score.
type Calculator struct {
	weights Weights
}

// NewCalculator builds a calculator for the given weights.
func NewCalculator(w Weights) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{weights: w}, nil
}

// Weights returns the configured weights.
func (c *Calculator) Weights() Weights {
	return c.weights
}

// WeightedAverage sums weight*mean over the non-empty buckets. The weight of an
// empty bucket is not redistributed. It returns nil when every bucket is empty.
func (c *Calculator) WeightedAverage(b Buckets) *float64 {
	parts := []struct {
		scores []float64
		weight float64
	}{
		{b.Exam, c.weights.Exam},
		{b.Quiz, c.weights.Quiz},
		{b.Homework, c.weights.Homework},
	}

	var (
		sum     float64
		present bool
	)
	for _, p := range parts {
		mean, ok := Mean(p.scores)
		if !ok {
			continue
		}
		sum += p.weight * mean
		present = true
	}
	if !present {
		return nil
	}
	return &sum
}

// Mean returns the arithmetic mean. The boolean is false for an empty slice.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}
