package examsession

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTickInterval is the countdown resolution.
const DefaultTickInterval = time.Second

// Loader establishes sessions: one exam fetch, then a running countdown.
type Loader struct {
	source       ExamSource
	grader       Grader
	scheduler    Scheduler
	tickInterval time.Duration
	leaveWarning string
	log          zerolog.Logger
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithScheduler replaces the ticker-based scheduler.
func WithScheduler(s Scheduler) LoaderOption {
	return func(l *Loader) { l.scheduler = s }
}

// WithTickInterval changes how often the countdown callback runs.
func WithTickInterval(d time.Duration) LoaderOption {
	return func(l *Loader) {
		if d > 0 {
			l.tickInterval = d
		}
	}
}

// WithLeaveWarning sets the navigation guard's message.
func WithLeaveWarning(msg string) LoaderOption {
	return func(l *Loader) { l.leaveWarning = msg }
}

// NewLoader creates a Loader over the given collaborators.
func NewLoader(source ExamSource, grader Grader, log zerolog.Logger, opts ...LoaderOption) *Loader {
	l := &Loader{
		source:       source,
		grader:       grader,
		scheduler:    TickerScheduler{},
		tickInterval: DefaultTickInterval,
		log:          log.With().Str("component", "exam_session").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start fetches examID exactly once and starts its countdown. ctx bounds both
// the fetch and the session's lifetime; automatic submission uses it too.
// Any failure is returned as *LoadError and no session exists.
func (l *Loader) Start(ctx context.Context, examID string, obs Observer) (*Session, error) {
	log := l.log.With().Str("exam_id", examID).Logger()

	exam, err := l.source.FetchExam(ctx, examID)
	if err != nil {
		log.Error().Err(err).Msg("Exam load failed")
		return nil, &LoadError{ExamID: examID, Err: err}
	}
	if exam == nil {
		return nil, &LoadError{ExamID: examID, Err: ErrExamNotFound}
	}
	if err := exam.validate(); err != nil {
		log.Error().Err(err).Msg("Exam definition rejected")
		return nil, &LoadError{ExamID: examID, Err: err}
	}
	exam = copyExam(exam)

	if obs == nil {
		obs = NopObserver{}
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		exam:    exam,
		grader:  l.grader,
		obs:     obs,
		guard:   newNavigationGuard(l.leaveWarning),
		log:     log,
		ctx:     sctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		answers: NewAnswerStore(exam.Questions),
		nav:     NewNavigator(len(exam.Questions)),
		clock:   NewSessionClock(exam.TimeLimitMinutes),
	}

	s.mu.Lock()
	s.stopTimer = l.scheduler.Every(l.tickInterval, s.tick)
	s.mu.Unlock()

	log.Info().
		Int("questions", len(exam.Questions)).
		Int("remaining_seconds", exam.TimeLimitMinutes*60).
		Msg("Exam session started")
	return s, nil
}

func copyExam(e *Exam) *Exam {
	out := *e
	out.Questions = make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	return &out
}
