package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-exam/internal/config"
	"github.com/stemsi/exstem-exam/internal/model"
)

// Domain Errors
var (
	ErrExamNotFound      = errors.New("exam not found")
	ErrExamNotActive     = errors.New("exam is not open for students")
	ErrNoQuestions       = errors.New("exam has no questions")
	ErrInvalidCorrectKey = errors.New("correct_option exceeds the number of options")
)

// ExamStore is the exam persistence used by ExamService.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListActive(ctx context.Context) ([]model.Exam, error)
	CreateWithQuestions(ctx context.Context, e *model.Exam, questions []model.Question) error
}

// QuestionStore is the question persistence used by ExamService.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// ExamService serves exam definitions to students from a Redis "fast lane",
// falling back to PostgreSQL when the cache is cold.
type ExamService struct {
	examRepo       ExamStore
	questionRepo   QuestionStore
	rdb            *redis.Client
	defaultPassing float64
	log            zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo ExamStore,
	questionRepo QuestionStore,
	rdb *redis.Client,
	defaultPassing float64,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:       examRepo,
		questionRepo:   questionRepo,
		rdb:            rdb,
		defaultPassing: defaultPassing,
		log:            log.With().Str("component", "exam_service").Logger(),
	}
}

// PassingScore resolves the threshold for an exam.
func (s *ExamService) PassingScore(exam *model.Exam) float64 {
	if exam.PassingScore != nil {
		return *exam.PassingScore
	}
	return s.defaultPassing
}

// SeedExam validates and stores an exam with its questions as ACTIVE,
// then warms its cache so students can start immediately.
func (s *ExamService) SeedExam(ctx context.Context, req *model.SeedExamRequest) (*model.Exam, error) {
	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		if q.CorrectOption > len(q.Options) {
			return nil, fmt.Errorf("question %d: %w", i+1, ErrInvalidCorrectKey)
		}
		order := q.OrderNum
		if order == 0 {
			order = i + 1
		}
		questions[i] = model.Question{
			QuestionText:  q.QuestionText,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
			OrderNum:      order,
		}
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	exam := &model.Exam{
		Title:            req.Title,
		CourseTitle:      req.CourseTitle,
		TimeLimitMinutes: req.TimeLimitMinutes,
		PassingScore:     req.PassingScore,
		Status:           model.ExamStatusActive,
	}
	if req.ID != nil {
		exam.ID = *req.ID
	}

	if err := s.examRepo.CreateWithQuestions(ctx, exam, questions); err != nil {
		return nil, fmt.Errorf("store exam: %w", err)
	}
	if _, err := s.warm(ctx, exam, questions); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Msg("Exam seeded")
	return exam, nil
}

// WarmExamCache loads an exam's payload and answer key from PostgreSQL into Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) (*model.ExamPayload, error) {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return s.warm(ctx, exam, questions)
}

func (s *ExamService) warm(ctx context.Context, exam *model.Exam, questions []model.Question) (*model.ExamPayload, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	// Build student-facing payload (without correct answers).
	studentQuestions := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		studentQuestions[i] = model.QuestionForStudent{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			OrderNum:     q.OrderNum,
		}
	}

	payload := &model.ExamPayload{
		ExamID:           exam.ID,
		Title:            exam.Title,
		CourseTitle:      exam.CourseTitle,
		TimeLimitMinutes: exam.TimeLimitMinutes,
		PassingScore:     s.PassingScore(exam),
		Questions:        studentQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	answerKey := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		answerKey[q.ID.String()] = q.CorrectOption
	}

	id := exam.ID.String()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(id), payloadJSON, 0)
	pipe.Del(ctx, config.CacheKey.ExamAnswerKey(id))
	pipe.HSet(ctx, config.CacheKey.ExamAnswerKey(id), answerKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", id).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return payload, nil
}

// PrewarmAllCaches loads all active exams into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No active exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming active exams...")

	warmed := 0
	for i := range exams {
		if _, err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// GetExamPayload returns the cached student payload, rebuilding it from
// PostgreSQL on a cache miss.
func (s *ExamService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Bytes()
	if err == nil {
		var payload model.ExamPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &payload, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get payload: %w", err)
	}

	exam, err := s.loadActive(ctx, examID)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("exam_id", examID.String()).Msg("Payload cache miss, rebuilding")
	return s.WarmExamCache(ctx, exam)
}

// GetExamDetail returns the exam in the student API's flattened shape.
func (s *ExamService) GetExamDetail(ctx context.Context, examID uuid.UUID) (*model.ExamDetail, error) {
	payload, err := s.GetExamPayload(ctx, examID)
	if err != nil {
		return nil, err
	}

	detail := &model.ExamDetail{
		ExamID:           payload.ExamID,
		Title:            payload.Title,
		CourseTitle:      payload.CourseTitle,
		TimeLimitMinutes: payload.TimeLimitMinutes,
		Questions:        make([]model.QuestionDetail, len(payload.Questions)),
	}
	for i, q := range payload.Questions {
		detail.Questions[i] = model.NewQuestionDetail(q)
	}
	return detail, nil
}

// GetAnswerKey returns question ID to correct option, rebuilding the cache
// when the hash is missing.
func (s *ExamService) GetAnswerKey(ctx context.Context, examID uuid.UUID) (map[string]int, error) {
	key := config.CacheKey.ExamAnswerKey(examID.String())
	raw, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}

	if len(raw) == 0 {
		exam, err := s.loadActive(ctx, examID)
		if err != nil {
			return nil, err
		}
		if _, err := s.WarmExamCache(ctx, exam); err != nil {
			return nil, err
		}
		if raw, err = s.rdb.HGetAll(ctx, key).Result(); err != nil {
			return nil, fmt.Errorf("get answer key: %w", err)
		}
	}

	answerKey := make(map[string]int, len(raw))
	for qID, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("answer key %s: %w", qID, err)
		}
		answerKey[qID] = n
	}
	return answerKey, nil
}

func (s *ExamService) loadActive(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.Status != model.ExamStatusActive {
		return nil, ErrExamNotActive
	}
	return exam, nil
}
