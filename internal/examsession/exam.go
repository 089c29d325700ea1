// Package examsession implements a single student's timed pass through one exam:
// loading, countdown, answer capture, navigation and exactly-once submission.
package examsession

import (
	"context"
	"fmt"
)

// MaxOptions is the largest number of choices a question may carry.
const MaxOptions = 5

// Exam is the immutable definition of an exam attempt.
type Exam struct {
	ID               string
	Title            string
	CourseTitle      string
	TimeLimitMinutes int
	Questions        []Question
}

// Question is a single multiple-choice item. Options are ordered; ordinal 1 is Options[0].
type Question struct {
	ID      string
	Text    string
	Options []string
}

// Result is what the grading collaborator returns for a submission.
type Result struct {
	Score  float64 `json:"score"`
	Passed bool    `json:"passed"`
}

// ExamSource fetches the exam definition.
type ExamSource interface {
	FetchExam(ctx context.Context, examID string) (*Exam, error)
}

// Grader scores a submitted answer map.
type Grader interface {
	SubmitAnswers(ctx context.Context, examID string, answers AnswerMap) (*Result, error)
}

// validate checks the structural rules a session relies on.
func (e *Exam) validate() error {
	if e.TimeLimitMinutes <= 0 {
		return fmt.Errorf("time limit must be positive, got %d minutes", e.TimeLimitMinutes)
	}
	if len(e.Questions) == 0 {
		return ErrNoQuestions
	}
	seen := make(map[string]struct{}, len(e.Questions))
	for i, q := range e.Questions {
		if q.ID == "" {
			return fmt.Errorf("question %d has no id", i+1)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = struct{}{}
		if len(q.Options) == 0 || len(q.Options) > MaxOptions {
			return fmt.Errorf("question %s has %d options, want 1..%d", q.ID, len(q.Options), MaxOptions)
		}
	}
	return nil
}
