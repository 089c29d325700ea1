package handler_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-exam/internal/config"
	"github.com/stemsi/exstem-exam/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExam_ReturnsDetailWithoutAnswers(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, 5)

	code, body := env.do(t, http.MethodGet, "/api/v1/student/exams/"+env.exam.ID.String(), tok, "")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body.Metadata.RequestID)

	var detail model.ExamDetail
	require.NoError(t, json.Unmarshal(body.Data, &detail))
	assert.Equal(t, "Algorithms", detail.Title)
	assert.Equal(t, "CS 201", detail.CourseTitle)
	assert.Equal(t, 1, detail.TimeLimitMinutes)
	require.Len(t, detail.Questions, 4)
	assert.Equal(t, "a", detail.Questions[0].Option1)
	assert.Equal(t, "d", detail.Questions[0].Option4)
	assert.Empty(t, detail.Questions[0].Option5)
	assert.NotContains(t, string(body.Data), "correct_option")
}

func TestGetExam_Errors(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, 5)

	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
		wantErr  string
	}{
		{"no token", "/api/v1/student/exams/" + env.exam.ID.String(), "", http.StatusUnauthorized, "TOKEN_REQUIRED"},
		{"bad token", "/api/v1/student/exams/" + env.exam.ID.String(), "nope", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"bad id", "/api/v1/student/exams/not-a-uuid", tok, http.StatusBadRequest, "INVALID_ID"},
		{"unknown exam", "/api/v1/student/exams/" + uuid.NewString(), tok, http.StatusNotFound, "EXAM_NOT_FOUND"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := env.do(t, http.MethodGet, tc.path, tc.token, "")
			assert.Equal(t, tc.wantCode, code)
			assert.Equal(t, tc.wantErr, errCode(body))
		})
	}
}

func (e *testEnv) answersJSON(options ...int) string {
	answers := map[string]int{}
	for i, opt := range options {
		if opt > 0 {
			answers[e.questions[i].ID.String()] = opt
		}
	}
	raw, _ := json.Marshal(model.SubmitAnswersRequest{Answers: answers})
	return string(raw)
}

func TestSubmitAnswers_IdempotentPerStudent(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, 5)
	submitPath := "/api/v1/student/exams/" + env.exam.ID.String() + "/submit"
	resultPath := "/api/v1/student/exams/" + env.exam.ID.String() + "/result"

	code, body := env.do(t, http.MethodGet, resultPath, tok, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "RESULT_NOT_FOUND", errCode(body))

	// Correct options are 1, 2, 3, 4.
	code, body = env.do(t, http.MethodPost, submitPath, tok, env.answersJSON(1, 2, 3, 1))
	require.Equal(t, http.StatusOK, code)
	var res model.SubmitResult
	require.NoError(t, json.Unmarshal(body.Data, &res))
	assert.Equal(t, model.SubmitResult{Score: 75, Passed: true}, res)

	code, body = env.do(t, http.MethodPost, submitPath, tok, env.answersJSON(4, 4, 4, 1))
	require.Equal(t, http.StatusOK, code)
	var again model.SubmitResult
	require.NoError(t, json.Unmarshal(body.Data, &again))
	assert.Equal(t, res, again)

	code, body = env.do(t, http.MethodGet, resultPath, tok, "")
	require.Equal(t, http.StatusOK, code)
	var stored model.ExamResult
	require.NoError(t, json.Unmarshal(body.Data, &stored))
	assert.Equal(t, 3, stored.Correct)
	assert.Equal(t, 5, stored.StudentID)
}

func TestSubmitAnswers_EmptyAnswersGradeZero(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodPost, "/api/v1/student/exams/"+env.exam.ID.String()+"/submit",
		env.token(t, 6), `{"answers":{}}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"score":0,"passed":false}`, string(body.Data))
}

func TestSubmitAnswers_Validation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, 5)
	path := "/api/v1/student/exams/" + env.exam.ID.String() + "/submit"

	bodies := map[string]string{
		"option too large": env.answersJSON(9),
		"option zero":      fmt.Sprintf(`{"answers":{%q:0}}`, env.questions[0].ID),
		"key not uuid":     `{"answers":{"q1":1}}`,
		"malformed":        `{"answers":`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			code, resp := env.do(t, http.MethodPost, path, tok, body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "VALIDATION_ERROR", errCode(resp))
			assert.NotEmpty(t, resp.Error.Fields)
		})
	}
}

func TestSubmitAnswers_ConflictWhileGrading(t *testing.T) {
	env := newTestEnv(t)
	lockKey := config.CacheKey.StudentSubmitLockKey(env.exam.ID.String(), 5)
	require.NoError(t, env.mr.Set(lockKey, "in-flight"))

	code, body := env.do(t, http.MethodPost, "/api/v1/student/exams/"+env.exam.ID.String()+"/submit",
		env.token(t, 5), env.answersJSON(1))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SUBMISSION_IN_PROGRESS", errCode(body))
}

func TestSubmitAnswers_RateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.SubmitRatePerMinute = 2 })
	path := "/api/v1/student/exams/" + env.exam.ID.String() + "/submit"
	tok := env.token(t, 5)

	for i := 0; i < 2; i++ {
		code, _ := env.do(t, http.MethodPost, path, tok, env.answersJSON(1))
		require.Equal(t, http.StatusOK, code)
	}
	code, body := env.do(t, http.MethodPost, path, tok, env.answersJSON(1))
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errCode(body))

	code, _ = env.do(t, http.MethodPost, path, env.token(t, 6), env.answersJSON(1))
	assert.Equal(t, http.StatusOK, code, "limits are per student")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	code, body := env.do(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body.Data), `"redis":"ok"`)
}
