package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-exam/internal/config"
	"github.com/stemsi/exstem-exam/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "mw-secret", JWTExpiry: time.Hour})
}

func request(r http.Handler, target, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireStudentJWT(t *testing.T) {
	auth := newAuth()
	tok, err := auth.GenerateStudentToken(9)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", RequireStudentJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"valid", "Bearer " + tok, http.StatusOK},
		{"lowercase scheme", "bearer " + tok, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no scheme", tok, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := request(r, "/me", tc.header)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "9", w.Body.String())
			}
		})
	}
}

func TestRequireStudentWSAuth(t *testing.T) {
	auth := newAuth()
	tok, err := auth.GenerateStudentToken(3)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/ws", RequireStudentWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, request(r, "/ws?token="+tok, "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(r, "/ws", "Bearer "+tok).Code)
}

func TestRateLimiter_RefillsPerInterval(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"), "buckets are per key")

	now = now.Add(30 * time.Second)
	assert.False(t, rl.allow("a"), "no partial refill")

	now = now.Add(30 * time.Second)
	assert.True(t, rl.allow("a"))
}

func TestRateLimiter_SweepsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	rl.allow("idle")
	now = now.Add(4 * time.Minute)
	rl.allow("fresh")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "idle")
	assert.Contains(t, rl.visitors, "fresh")
}

func TestRateLimiter_KeysByStudent(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	rl := NewRateLimiter(1, time.Minute)
	r.GET("/submit", RequireStudentJWT(auth), rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	tok1, _ := auth.GenerateStudentToken(1)
	tok2, _ := auth.GenerateStudentToken(2)

	assert.Equal(t, http.StatusOK, request(r, "/submit", "Bearer "+tok1).Code)
	assert.Equal(t, http.StatusTooManyRequests, request(r, "/submit", "Bearer "+tok1).Code)
	assert.Equal(t, http.StatusOK, request(r, "/submit", "Bearer "+tok2).Code)
}
