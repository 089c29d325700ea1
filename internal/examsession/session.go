package examsession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// SubmissionState is the submission lifecycle of a session.
type SubmissionState int32

const (
	NotSubmitted SubmissionState = iota
	Submitting
	Submitted
)

func (s SubmissionState) String() string {
	switch s {
	case NotSubmitted:
		return "NOT_SUBMITTED"
	case Submitting:
		return "SUBMITTING"
	case Submitted:
		return "SUBMITTED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets the state appear by name in JSON payloads.
func (s SubmissionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Trigger says what started a submission.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
)

// Outcome says how a session ended.
type Outcome int

const (
	OutcomeActive Outcome = iota
	OutcomeSubmitted
	OutcomeExited
	OutcomeClosed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeActive:
		return "active"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeExited:
		return "exited"
	case OutcomeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Observer receives spontaneous session events. Callbacks run outside the
// session lock and may be invoked from the scheduler goroutine.
type Observer interface {
	OnTick(remaining int)
	OnExpired()
	OnSubmitting(trigger Trigger)
	OnSubmitted(trigger Trigger, result Result)
	OnSubmitFailed(err *SubmissionError)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnTick(int)                      {}
func (NopObserver) OnExpired()                      {}
func (NopObserver) OnSubmitting(Trigger)            {}
func (NopObserver) OnSubmitted(Trigger, Result)     {}
func (NopObserver) OnSubmitFailed(*SubmissionError) {}

// Session is one student's attempt at one exam. It is created by Loader.Start
// and must be released with Close when the hosting view goes away.
type Session struct {
	exam   *Exam
	grader Grader
	obs    Observer
	guard  *NavigationGuard
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// state only moves NOT_SUBMITTED→SUBMITTING by compare-and-set.
	state atomic.Int32

	mu        sync.Mutex
	answers   *AnswerStore
	nav       *Navigator
	clock     SessionClock
	stopTimer func()
	outcome   Outcome
	result    *Result
}

// Exam returns the loaded exam definition.
func (s *Session) Exam() *Exam { return s.exam }

// State returns the current submission state.
func (s *Session) State() SubmissionState { return SubmissionState(s.state.Load()) }

// Guard returns the session's navigation guard.
func (s *Session) Guard() *NavigationGuard { return s.guard }

// Done is closed when the session ends by submission, exit or Close.
func (s *Session) Done() <-chan struct{} { return s.done }

// Outcome returns how the session ended, or OutcomeActive.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Result returns the grading result once submitted.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

// Remaining returns the seconds left on the countdown.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.Remaining()
}

// Current returns the current index and its question.
func (s *Session) Current() (int, Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.nav.Index()
	return i, s.exam.Questions[i]
}

// Next moves to the following question.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Next()
}

// Prev moves to the preceding question.
func (s *Session) Prev() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Prev()
}

// Jump moves to question i, clamped to the exam's range.
func (s *Session) Jump(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.Jump(i)
}

// Select records option for the currently displayed question.
func (s *Session) Select(option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.submittableLocked(); err != nil {
		return err
	}
	return s.answers.Select(s.exam.Questions[s.nav.Index()].ID, option)
}

// SelectAnswer records option for questionID.
func (s *Session) SelectAnswer(questionID string, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.submittableLocked(); err != nil {
		return err
	}
	return s.answers.Select(questionID, option)
}

// Selected returns the recorded option for questionID, or 0.
func (s *Session) Selected(questionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Selected(questionID)
}

// Answers returns a copy of the current answer map.
func (s *Session) Answers() AnswerMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Snapshot()
}

// Progress returns the answered/unanswered status of every question.
func (s *Session) Progress() []QuestionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QuestionStatus, len(s.exam.Questions))
	for i, q := range s.exam.Questions {
		out[i] = QuestionStatus{
			Index:      i,
			QuestionID: q.ID,
			Answered:   s.answers.Answered(q.ID),
			Current:    i == s.nav.Index(),
		}
	}
	return out
}

// SubmitManual submits on the student's behalf. Without confirmation it only
// reports whether a submission would be admitted.
func (s *Session) SubmitManual(ctx context.Context, confirmed bool) (*Result, error) {
	if !confirmed {
		s.mu.Lock()
		err := s.submittableLocked()
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, ErrConfirmationRequired
	}
	return s.submit(ctx, TriggerManual)
}

// Exit abandons the exam without submitting. It bypasses the navigation guard
// and discards all answers.
func (s *Session) Exit(confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.submittableLocked(); err != nil {
		return err
	}
	s.answers.reset()
	s.endLocked(OutcomeExited)
	s.log.Info().Msg("Exam exited without submission")
	return nil
}

// Close tears the session down: the countdown stops and no submission is made.
// It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(OutcomeClosed)
}

func (s *Session) tick() {
	s.mu.Lock()
	if s.outcome != OutcomeActive || s.State() != NotSubmitted || s.clock.Expired() {
		s.mu.Unlock()
		return
	}
	remaining, expired := s.clock.Tick()
	if expired {
		s.stopTimerLocked()
	}
	s.mu.Unlock()

	s.obs.OnTick(remaining)
	if !expired {
		return
	}

	s.log.Info().Msg("Time expired, submitting automatically")
	s.obs.OnExpired()
	if _, err := s.submit(s.ctx, TriggerAuto); err != nil && !errors.Is(err, ErrSubmissionInProgress) {
		s.log.Warn().Err(err).Msg("Automatic submission did not complete")
	}
}

func (s *Session) submit(ctx context.Context, trigger Trigger) (*Result, error) {
	s.mu.Lock()
	if err := s.submittableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !s.state.CompareAndSwap(int32(NotSubmitted), int32(Submitting)) {
		s.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	snapshot := s.answers.Snapshot()
	s.mu.Unlock()

	log := s.log.With().Str("trigger", string(trigger)).Int("answered", len(snapshot)).Logger()
	log.Info().Msg("Submitting answers")
	s.obs.OnSubmitting(trigger)

	res, err := s.grader.SubmitAnswers(ctx, s.exam.ID, snapshot)
	if err == nil && res == nil {
		err = errors.New("grader returned no result")
	}
	if err != nil {
		s.state.Store(int32(NotSubmitted))
		serr := &SubmissionError{Trigger: trigger, Err: err}
		log.Error().Err(err).Msg("Submission failed, answers kept for retry")
		s.obs.OnSubmitFailed(serr)
		return nil, serr
	}

	s.mu.Lock()
	s.state.Store(int32(Submitted))
	s.result = res
	s.endLocked(OutcomeSubmitted)
	s.mu.Unlock()

	log.Info().Float64("score", res.Score).Bool("passed", res.Passed).Msg("Exam submitted")
	s.obs.OnSubmitted(trigger, *res)
	return res, nil
}

func (s *Session) submittableLocked() error {
	if s.outcome == OutcomeSubmitted || s.State() == Submitted {
		return ErrAlreadySubmitted
	}
	if s.outcome != OutcomeActive {
		return ErrSessionClosed
	}
	if s.State() == Submitting {
		return ErrSubmissionInProgress
	}
	return nil
}

func (s *Session) stopTimerLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
}

func (s *Session) endLocked(outcome Outcome) {
	if s.outcome != OutcomeActive {
		return
	}
	s.outcome = outcome
	s.stopTimerLocked()
	s.guard.disarm()
	s.cancel()
	close(s.done)
}
