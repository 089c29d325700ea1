package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-exam/internal/config"
	"github.com/stemsi/exstem-exam/internal/model"
)

var (
	ErrSubmissionInProgress = errors.New("a submission for this exam is already being graded")
	ErrResultNotFound       = errors.New("no result for this exam")
)

// ResultTTL is how long graded results stay in Redis; PostgreSQL keeps them after that.
const ResultTTL = 24 * time.Hour

// releaseLock deletes the submit lock only when it still holds our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ResultStore is the result persistence used by GradingService.
type ResultStore interface {
	GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error)
}

// GradingService grades submissions in RAM against the cached answer key and
// queues results for asynchronous persistence.
type GradingService struct {
	exams      *ExamService
	resultRepo ResultStore
	rdb        *redis.Client
	lockTTL    time.Duration
	log        zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(exams *ExamService, resultRepo ResultStore, rdb *redis.Client, lockTTL time.Duration, log zerolog.Logger) *GradingService {
	return &GradingService{
		exams:      exams,
		resultRepo: resultRepo,
		rdb:        rdb,
		lockTTL:    lockTTL,
		log:        log.With().Str("component", "grading_service").Logger(),
	}
}

// Grade scores answers against key. Answers for questions absent from the key
// are ignored and returned as unknown.
func Grade(key, answers map[string]int, passing float64) (res model.ExamResult, unknown []string) {
	for qID, opt := range answers {
		correctOpt, ok := key[qID]
		if !ok {
			unknown = append(unknown, qID)
			continue
		}
		if opt == correctOpt {
			res.Correct++
		}
	}
	res.Total = len(key)
	if res.Total > 0 {
		res.Score = float64(res.Correct) / float64(res.Total) * 100
	}
	res.Passed = res.Score >= passing
	return res, unknown
}

// SubmitAnswers grades one student's answers exactly once. A repeated call
// returns the stored result; a call racing an in-flight grading of the same
// exam and student fails with ErrSubmissionInProgress.
func (s *GradingService) SubmitAnswers(ctx context.Context, examID uuid.UUID, studentID int, answers map[string]int) (*model.SubmitResult, error) {
	log := s.log.With().Int("student_id", studentID).Str("exam_id", examID.String()).Logger()

	if prev, err := s.GetResult(ctx, examID, studentID); err == nil {
		log.Info().Msg("Replaying stored result")
		return &model.SubmitResult{Score: prev.Score, Passed: prev.Passed}, nil
	} else if !errors.Is(err, ErrResultNotFound) {
		return nil, err
	}

	lockKey := config.CacheKey.StudentSubmitLockKey(examID.String(), studentID)
	token := uuid.NewString()
	acquired, err := s.rdb.SetNX(ctx, lockKey, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire submit lock: %w", err)
	}
	if !acquired {
		return nil, ErrSubmissionInProgress
	}
	defer func() {
		if err := releaseLock.Run(context.WithoutCancel(ctx), s.rdb, []string{lockKey}, token).Err(); err != nil {
			log.Warn().Err(err).Msg("Release submit lock failed")
		}
	}()

	// A submission that finished between the first lookup and the lock.
	if prev, err := s.GetResult(ctx, examID, studentID); err == nil {
		return &model.SubmitResult{Score: prev.Score, Passed: prev.Passed}, nil
	}

	payload, err := s.exams.GetExamPayload(ctx, examID)
	if err != nil {
		return nil, err
	}
	answerKey, err := s.exams.GetAnswerKey(ctx, examID)
	if err != nil {
		return nil, err
	}

	res, unknown := Grade(answerKey, answers, payload.PassingScore)
	if len(unknown) > 0 {
		log.Warn().Strs("question_ids", unknown).Msg("Ignoring answers for unknown questions")
	}
	res.ID = uuid.New()
	res.ExamID = examID
	res.StudentID = studentID
	res.Answers = answers
	if res.Answers == nil {
		res.Answers = map[string]int{}
	}
	res.SubmittedAt = time.Now().UTC()

	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.StudentResultKey(examID.String(), studentID), raw, ResultTTL)
	pipe.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}

	log.Info().
		Float64("score", res.Score).
		Int("correct", res.Correct).
		Int("total", res.Total).
		Bool("passed", res.Passed).
		Msg("Exam submitted and graded")

	return &model.SubmitResult{Score: res.Score, Passed: res.Passed}, nil
}

// GetResult returns a student's graded result from Redis or PostgreSQL.
func (s *GradingService) GetResult(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamResult, error) {
	key := config.CacheKey.StudentResultKey(examID.String(), studentID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var res model.ExamResult
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		return &res, nil
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("get result: %w", err)
	}

	res, err := s.resultRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}

	if raw, err := json.Marshal(res); err == nil {
		s.rdb.Set(ctx, key, raw, ResultTTL)
	}
	return res, nil
}
