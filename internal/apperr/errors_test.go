package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthenticated", ErrUnauthenticated, http.StatusUnauthorized},
		{"denied", Denied("owner only"), http.StatusForbidden},
		{"not found", NotFound("task"), http.StatusNotFound},
		{"validation", Invalid("title", "required"), http.StatusBadRequest},
		{"conflict", Conflict("already a member"), http.StatusConflict},
		{"wrapped", fmt.Errorf("update: %w", NotFound("project")), http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := Invalid("priority", "must be between 0 and 3")

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, "priority", verr.Field)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "priority: must be between 0 and 3", err.Error())
}
