package examsession

import (
	"errors"
	"fmt"
)

var (
	ErrExamNotFound         = errors.New("exam not found")
	ErrNoQuestions          = errors.New("exam has no questions")
	ErrUnknownQuestion      = errors.New("question is not part of this exam")
	ErrInvalidOption        = errors.New("option out of range")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrAlreadySubmitted     = errors.New("exam already submitted")
	ErrSessionClosed        = errors.New("exam session is closed")
)

// LoadError reports that the exam could not be loaded. The session is never
// established and the caller is expected to leave the exam.
type LoadError struct {
	ExamID string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load exam %s: %v", e.ExamID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SubmissionError reports a failed grading call. The session is back in
// NOT_SUBMITTED with its answers intact, so a manual retry is possible.
type SubmissionError struct {
	Trigger Trigger
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s submission failed: %v", e.Trigger, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
