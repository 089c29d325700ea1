//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-exam/internal/backend"
	"github.com/stemsi/exstem-exam/internal/config"
	"github.com/stemsi/exstem-exam/internal/database"
	"github.com/stemsi/exstem-exam/internal/examsession"
	"github.com/stemsi/exstem-exam/internal/model"
	"github.com/stemsi/exstem-exam/internal/repository"
	"github.com/stemsi/exstem-exam/internal/service"
)

const (
	defaultBaseURL = "http://localhost:8080"
	studentID      = 4242
)

var (
	baseURL      string
	pool         *pgxpool.Pool
	auth         *service.AuthService
	exam         *model.Exam
	questions    []model.Question
	studentToken string
)

// The suite expects a migrated database and a running server sharing
// DATABASE_URL, REDIS_URL and JWT_SECRET with this process.
func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	if err := setup(); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}
	code := m.Run()
	pool.Close()
	os.Exit(code)
}

func setup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.Load()
	log := zerolog.Nop()

	var err error
	pool, err = database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return err
	}
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rdb.Close()

	if _, err := pool.Exec(ctx, `DELETE FROM exam_results WHERE student_id = $1`, studentID); err != nil {
		return fmt.Errorf("cleanup results: %w", err)
	}

	exams := service.NewExamService(
		repository.NewExamRepository(pool),
		repository.NewQuestionRepository(pool),
		rdb, cfg.DefaultPassingScore, log,
	)
	req := &model.SeedExamRequest{Title: "E2E Exam", CourseTitle: "E2E 101", TimeLimitMinutes: 5}
	for i := 1; i <= 4; i++ {
		req.Questions = append(req.Questions, model.AddQuestionRequest{
			QuestionText:  fmt.Sprintf("Question %d", i),
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: i,
		})
	}
	exam, err = exams.SeedExam(ctx, req)
	if err != nil {
		return fmt.Errorf("seed exam: %w", err)
	}
	questions, err = repository.NewQuestionRepository(pool).ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	auth = service.NewAuthService(cfg)
	studentToken, err = auth.GenerateStudentToken(studentID)
	return err
}

func TestE2EFlow(t *testing.T) {
	examPath := "/api/v1/student/exams/" + exam.ID.String()

	t.Run("Unauthorized", func(t *testing.T) {
		resp, err := get(examPath, "")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
	})

	// Drives a full session through the HTTP client: load, answer, submit.
	t.Run("SessionOverHTTP", func(t *testing.T) {
		client := backend.NewClient(baseURL, studentToken, zerolog.Nop())
		sess, err := examsession.NewLoader(client, client, zerolog.Nop()).
			Start(context.Background(), exam.ID.String(), nil)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		defer sess.Close()

		if got := len(sess.Exam().Questions); got != len(questions) {
			t.Fatalf("questions = %d, want %d", got, len(questions))
		}
		for i := 0; i < 3; i++ {
			sess.Jump(i)
			if err := sess.Select(i + 1); err != nil {
				t.Fatalf("select: %v", err)
			}
		}

		res, err := sess.SubmitManual(context.Background(), true)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if res.Score != 75 || !res.Passed {
			t.Fatalf("result = %+v, want 75 passed", res)
		}
	})

	t.Run("ResubmitReplays", func(t *testing.T) {
		resp, err := post(examPath+"/submit", model.SubmitAnswersRequest{Answers: map[string]int{}}, studentToken)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data model.SubmitResult `json:"data"`
		}
		decodeJSON(t, resp, &body)
		if body.Data.Score != 75 {
			t.Errorf("replayed score = %v, want 75", body.Data.Score)
		}
	})

	t.Run("ResultPersisted", func(t *testing.T) {
		deadline := time.Now().Add(15 * time.Second)
		for {
			var score float64
			err := pool.QueryRow(context.Background(),
				`SELECT score FROM exam_results WHERE exam_id = $1 AND student_id = $2`,
				exam.ID, studentID).Scan(&score)
			if err == nil {
				if score != 75 {
					t.Fatalf("persisted score = %v, want 75", score)
				}
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("result not persisted: %v", err)
			}
			time.Sleep(500 * time.Millisecond)
		}
	})
}

// Helpers

func post(path string, body interface{}, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest("POST", baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func get(path string, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
