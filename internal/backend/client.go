// Package backend is the HTTP client of the student exam API. It lets a
// remote examsession.Loader fetch exams and submit answers.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-exam/internal/examsession"
	"github.com/stemsi/exstem-exam/internal/model"
	"github.com/stemsi/exstem-exam/internal/response"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 15 * time.Second

// APIError is a non-2xx reply carrying the server's error envelope.
type APIError struct {
	Status  int
	Code    response.ErrCode
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to /api/v1/student on behalf of one student token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient builds a client for the API rooted at baseURL.
func NewClient(baseURL, token string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     log.With().Str("component", "backend_client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchExam implements examsession.ExamSource.
func (c *Client) FetchExam(ctx context.Context, examID string) (*examsession.Exam, error) {
	var detail model.ExamDetail
	if err := c.do(ctx, http.MethodGet, examPath(examID, ""), nil, &detail); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Code == response.ErrExamNotFound || apiErr.Code == response.ErrExamNotAvailable) {
			return nil, fmt.Errorf("%w: %v", examsession.ErrExamNotFound, err)
		}
		return nil, err
	}

	exam := &examsession.Exam{
		ID:               detail.ExamID.String(),
		Title:            detail.Title,
		CourseTitle:      detail.CourseTitle,
		TimeLimitMinutes: detail.TimeLimitMinutes,
		Questions:        make([]examsession.Question, len(detail.Questions)),
	}
	for i, q := range detail.Questions {
		exam.Questions[i] = examsession.Question{
			ID:      q.QuestionID.String(),
			Text:    q.QuestionText,
			Options: q.Options(),
		}
	}
	return exam, nil
}

// SubmitAnswers implements examsession.Grader.
func (c *Client) SubmitAnswers(ctx context.Context, examID string, answers examsession.AnswerMap) (*examsession.Result, error) {
	body := model.SubmitAnswersRequest{Answers: answers}
	var res model.SubmitResult
	if err := c.do(ctx, http.MethodPost, examPath(examID, "/submit"), body, &res); err != nil {
		return nil, err
	}
	return &examsession.Result{Score: res.Score, Passed: res.Passed}, nil
}

// Result fetches the stored result of a previous submission.
func (c *Client) Result(ctx context.Context, examID string) (*model.ExamResult, error) {
	var res model.ExamResult
	if err := c.do(ctx, http.MethodGet, examPath(examID, "/result"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func examPath(examID, suffix string) string {
	return "/api/v1/student/exams/" + url.PathEscape(examID) + suffix
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Backend request")

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 300 || env.Error != nil {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
