package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"teamtasks/backend/internal/middleware"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var logs bytes.Buffer
	router := gin.New()
	router.Use(middleware.RequestLogger(zerolog.New(&logs)))
	router.GET("/items/:id", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("inside handler")
		c.Status(http.StatusNotFound)
	})

	req, _ := http.NewRequest("GET", "/items/42", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
	out := logs.String()
	assert.Contains(t, out, `"message":"inside handler"`)
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"path":"/items/:id"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.RequestLogger(zerolog.Nop()))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req, _ := http.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Len(t, w.Header().Get(middleware.RequestIDHeader), 36)
}
