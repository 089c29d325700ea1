package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft    ExamStatus = "DRAFT"
	ExamStatusActive   ExamStatus = "ACTIVE"
	ExamStatusArchived ExamStatus = "ARCHIVED"
)

// Exam represents an exam entity.
type Exam struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	CourseTitle      string     `json:"course_title"`
	TimeLimitMinutes int        `json:"time_limit_minutes"`
	PassingScore     *float64   `json:"passing_score,omitempty"`
	Status           ExamStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ExamPayload is the Redis-cached payload sent to students (no correct answers).
type ExamPayload struct {
	ExamID           uuid.UUID            `json:"exam_id"`
	Title            string               `json:"title"`
	CourseTitle      string               `json:"course_title"`
	TimeLimitMinutes int                  `json:"time_limit_minutes"`
	PassingScore     float64              `json:"passing_score"`
	Questions        []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	OrderNum     int       `json:"order_num"`
}

// ExamDetail is the exam detail response of the student API.
type ExamDetail struct {
	ExamID           uuid.UUID        `json:"exam_id"`
	Title            string           `json:"title"`
	CourseTitle      string           `json:"course_title"`
	TimeLimitMinutes int              `json:"time_limit_minutes"`
	Questions        []QuestionDetail `json:"questions"`
}

// QuestionDetail flattens up to five options into option1..option5.
type QuestionDetail struct {
	QuestionID   uuid.UUID `json:"question_id"`
	QuestionText string    `json:"question_text"`
	Option1      string    `json:"option1,omitempty"`
	Option2      string    `json:"option2,omitempty"`
	Option3      string    `json:"option3,omitempty"`
	Option4      string    `json:"option4,omitempty"`
	Option5      string    `json:"option5,omitempty"`
}

// Options returns the non-empty options in ordinal order.
func (q QuestionDetail) Options() []string {
	all := []string{q.Option1, q.Option2, q.Option3, q.Option4, q.Option5}
	n := len(all)
	for n > 0 && all[n-1] == "" {
		n--
	}
	return all[:n]
}

// NewQuestionDetail flattens a cached question.
func NewQuestionDetail(q QuestionForStudent) QuestionDetail {
	d := QuestionDetail{QuestionID: q.ID, QuestionText: q.QuestionText}
	slots := []*string{&d.Option1, &d.Option2, &d.Option3, &d.Option4, &d.Option5}
	for i, opt := range q.Options {
		if i >= len(slots) {
			break
		}
		*slots[i] = opt
	}
	return d
}

// SeedExamRequest is the JSON document accepted by cmd/seed-exam.
type SeedExamRequest struct {
	ID               *uuid.UUID           `json:"id" binding:"omitempty"`
	Title            string               `json:"title" binding:"required,min=3,max=255"`
	CourseTitle      string               `json:"course_title" binding:"required,max=255"`
	TimeLimitMinutes int                  `json:"time_limit_minutes" binding:"required,min=1,max=480"`
	PassingScore     *float64             `json:"passing_score" binding:"omitempty,min=0,max=100"`
	Questions        []AddQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
