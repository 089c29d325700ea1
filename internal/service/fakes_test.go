package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-exam/internal/model"
)

type memExamStore struct {
	mu        sync.Mutex
	exams     map[uuid.UUID]model.Exam
	questions map[uuid.UUID][]model.Question
	gets      int
}

func newMemExamStore() *memExamStore {
	return &memExamStore{
		exams:     map[uuid.UUID]model.Exam{},
		questions: map[uuid.UUID][]model.Question{},
	}
}

func (m *memExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	e, ok := m.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (m *memExamStore) ListActive(_ context.Context) ([]model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Exam
	for _, e := range m.exams {
		if e.Status == model.ExamStatusActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memExamStore) CreateWithQuestions(_ context.Context, e *model.Exam, questions []model.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	for i := range questions {
		if questions[i].ID == uuid.Nil {
			questions[i].ID = uuid.New()
		}
		questions[i].ExamID = e.ID
	}
	m.exams[e.ID] = *e
	m.questions[e.ID] = append([]model.Question(nil), questions...)
	return nil
}

func (m *memExamStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Question(nil), m.questions[examID]...), nil
}

type memResultStore struct {
	mu      sync.Mutex
	results map[string]model.ExamResult
}

func (m *memResultStore) GetByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[resultKey(examID, studentID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &r, nil
}

func resultKey(examID uuid.UUID, studentID int) string {
	return fmt.Sprintf("%s/%d", examID, studentID)
}

const defaultLockTTL = 30 * time.Second

type fixture struct {
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	store   *memExamStore
	results *memResultStore
	exams   *ExamService
	grading *GradingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemExamStore()
	results := &memResultStore{results: map[string]model.ExamResult{}}
	exams := NewExamService(store, store, rdb, 60, zerolog.Nop())
	grading := NewGradingService(exams, results, rdb, defaultLockTTL, zerolog.Nop())

	return &fixture{mr: mr, rdb: rdb, store: store, results: results, exams: exams, grading: grading}
}

// seedFourQuestions stores an active exam whose correct options are 1, 2, 3, 4.
func (f *fixture) seedFourQuestions(t *testing.T, passing *float64) (*model.Exam, []model.Question) {
	t.Helper()
	req := &model.SeedExamRequest{
		Title:            "Networks",
		CourseTitle:      "CS 340",
		TimeLimitMinutes: 30,
		PassingScore:     passing,
	}
	for i := 1; i <= 4; i++ {
		req.Questions = append(req.Questions, model.AddQuestionRequest{
			QuestionText:  "Q",
			Options:       []string{"a", "b", "c", "d", "e"},
			CorrectOption: i,
		})
	}
	exam, err := f.exams.SeedExam(context.Background(), req)
	if err != nil {
		t.Fatalf("seed exam: %v", err)
	}
	questions, _ := f.store.ListByExam(context.Background(), exam.ID)
	return exam, questions
}
