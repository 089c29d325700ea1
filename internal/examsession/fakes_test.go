package examsession

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type manualScheduler struct {
	mu       sync.Mutex
	fn       func()
	interval time.Duration
	stopped  bool
}

func (m *manualScheduler) Every(interval time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	m.interval = interval
	return func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
	}
}

// Fire runs the callback n times, stopping early once cancelled.
func (m *manualScheduler) Fire(n int) {
	for i := 0; i < n; i++ {
		m.mu.Lock()
		fn, stopped := m.fn, m.stopped
		m.mu.Unlock()
		if stopped {
			return
		}
		fn()
	}
}

// FireLate runs the callback even after cancellation, like a tick that was
// already queued when stop was called.
func (m *manualScheduler) FireLate() {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	fn()
}

func (m *manualScheduler) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

type fakeSource struct {
	mu    sync.Mutex
	exam  *Exam
	err   error
	calls int
}

func (f *fakeSource) FetchExam(_ context.Context, examID string) (*Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.exam == nil || f.exam.ID != examID {
		return nil, ErrExamNotFound
	}
	return f.exam, nil
}

type fakeGrader struct {
	mu      sync.Mutex
	calls   []AnswerMap
	errs    []error
	result  Result
	block   chan struct{}
	entered chan struct{}
	onCall  func()
}

func (g *fakeGrader) SubmitAnswers(_ context.Context, _ string, answers AnswerMap) (*Result, error) {
	g.mu.Lock()
	g.calls = append(g.calls, answers)
	var err error
	if n := len(g.calls) - 1; n < len(g.errs) {
		err = g.errs[n]
	}
	block, entered, hook := g.block, g.entered, g.onCall
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	r := g.result
	return &r, nil
}

func (g *fakeGrader) Calls() []AnswerMap {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]AnswerMap(nil), g.calls...)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
	ticks  []int
}

func (o *recordingObserver) add(ev string) {
	o.mu.Lock()
	o.events = append(o.events, ev)
	o.mu.Unlock()
}

func (o *recordingObserver) OnTick(remaining int) {
	o.mu.Lock()
	o.ticks = append(o.ticks, remaining)
	o.mu.Unlock()
}
func (o *recordingObserver) OnExpired()             { o.add("expired") }
func (o *recordingObserver) OnSubmitting(t Trigger) { o.add("submitting:" + string(t)) }
func (o *recordingObserver) OnSubmitted(t Trigger, r Result) {
	o.add(fmt.Sprintf("submitted:%s:%.0f", t, r.Score))
}
func (o *recordingObserver) OnSubmitFailed(err *SubmissionError) {
	o.add("failed:" + string(err.Trigger))
}

func (o *recordingObserver) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func (o *recordingObserver) Ticks() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.ticks...)
}

func threeQuestionExam() *Exam {
	return &Exam{
		ID:               "exam-1",
		Title:            "Midterm",
		CourseTitle:      "Intro to Go",
		TimeLimitMinutes: 1,
		Questions: []Question{
			{ID: "q1", Text: "Q1", Options: []string{"a", "b", "c", "d"}},
			{ID: "q2", Text: "Q2", Options: []string{"a", "b", "c", "d"}},
			{ID: "q3", Text: "Q3", Options: []string{"a", "b", "c", "d", "e"}},
		},
	}
}

type harness struct {
	session  *Session
	sched    *manualScheduler
	grader   *fakeGrader
	observer *recordingObserver
}

func startHarness(t *testing.T, exam *Exam, grader *fakeGrader) *harness {
	t.Helper()
	sched := &manualScheduler{}
	obs := &recordingObserver{}
	loader := NewLoader(&fakeSource{exam: exam}, grader, zerolog.Nop(), WithScheduler(sched))

	s, err := loader.Start(context.Background(), exam.ID, obs)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return &harness{session: s, sched: sched, grader: grader, observer: obs}
}
