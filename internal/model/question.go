package model

import (
	"github.com/google/uuid"
)

// Question represents a single multiple-choice exam question.
type Question struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	QuestionText  string    `json:"question_text"`
	Options       []string  `json:"options"`
	CorrectOption int       `json:"correct_option"`
	OrderNum      int       `json:"order_num"`
}

// AddQuestionRequest is one question of a seeded exam.
type AddQuestionRequest struct {
	QuestionText  string   `json:"question_text" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=5,dive,required,max=1000"`
	CorrectOption int      `json:"correct_option" binding:"required,min=1,max=5"`
	OrderNum      int      `json:"order_num" binding:"min=0"`
}
