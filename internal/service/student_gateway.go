package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-exam/internal/examsession"
)

// StudentGateway serves one student's live session in-process: it is both the
// exam source and the grader of an examsession.Loader.
type StudentGateway struct {
	exams     *ExamService
	grading   *GradingService
	studentID int
}

// NewStudentGateway binds the services to a student.
func NewStudentGateway(exams *ExamService, grading *GradingService, studentID int) *StudentGateway {
	return &StudentGateway{exams: exams, grading: grading, studentID: studentID}
}

// FetchExam implements examsession.ExamSource.
func (g *StudentGateway) FetchExam(ctx context.Context, examID string) (*examsession.Exam, error) {
	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", examsession.ErrExamNotFound, err)
	}

	payload, err := g.exams.GetExamPayload(ctx, id)
	if err != nil {
		if errors.Is(err, ErrExamNotFound) || errors.Is(err, ErrExamNotActive) {
			return nil, fmt.Errorf("%w: %v", examsession.ErrExamNotFound, err)
		}
		return nil, err
	}

	exam := &examsession.Exam{
		ID:               payload.ExamID.String(),
		Title:            payload.Title,
		CourseTitle:      payload.CourseTitle,
		TimeLimitMinutes: payload.TimeLimitMinutes,
		Questions:        make([]examsession.Question, len(payload.Questions)),
	}
	for i, q := range payload.Questions {
		exam.Questions[i] = examsession.Question{
			ID:      q.ID.String(),
			Text:    q.QuestionText,
			Options: q.Options,
		}
	}
	return exam, nil
}

// SubmitAnswers implements examsession.Grader.
func (g *StudentGateway) SubmitAnswers(ctx context.Context, examID string, answers examsession.AnswerMap) (*examsession.Result, error) {
	id, err := uuid.Parse(examID)
	if err != nil {
		return nil, fmt.Errorf("parse exam id: %w", err)
	}

	res, err := g.grading.SubmitAnswers(ctx, id, g.studentID, answers)
	if err != nil {
		return nil, err
	}
	return &examsession.Result{Score: res.Score, Passed: res.Passed}, nil
}
