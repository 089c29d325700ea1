package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmitAnswersRequest is the body of a student's answer submission.
// Keys are question IDs, values the selected option ordinal.
type SubmitAnswersRequest struct {
	Answers map[string]int `json:"answers" binding:"dive,keys,uuid,endkeys,min=1,max=5"`
}

// SubmitResult is returned to the student after grading.
type SubmitResult struct {
	Score  float64 `json:"score"`
	Passed bool    `json:"passed"`
}

// ExamResult is a persisted, graded submission. One per exam and student.
type ExamResult struct {
	ID          uuid.UUID      `json:"id"`
	ExamID      uuid.UUID      `json:"exam_id"`
	StudentID   int            `json:"student_id"`
	Score       float64        `json:"score"`
	Passed      bool           `json:"passed"`
	Correct     int            `json:"correct"`
	Total       int            `json:"total"`
	Answers     map[string]int `json:"answers"`
	SubmittedAt time.Time      `json:"submitted_at"`
}
