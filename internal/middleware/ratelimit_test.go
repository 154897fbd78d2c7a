package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"teamtasks/backend/internal/middleware"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := middleware.NewRateLimiter(60, 2, time.Minute)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per key")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := middleware.NewRateLimiter(60, 1, 0)
	rl.Allow("a")
	rl.Allow("b")
	time.Sleep(time.Millisecond)

	assert.Equal(t, 2, rl.Cleanup())
	assert.True(t, rl.Allow("a"), "a forgotten client starts with a full bucket")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(1, 1, time.Minute)))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func() *httptest.ResponseRecorder {
		req, _ := http.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}
