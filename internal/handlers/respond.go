package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"teamtasks/backend/internal/apperr"
)

// respondError writes err using the status apperr assigns to it. Anything
// unclassified is logged and reported as a bare 500.
func respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	body := gin.H{"error": err.Error()}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		body["error"] = "validation failed"
		body["details"] = []*apperr.ValidationError{verr}
	}
	c.JSON(status, body)
}

// bindJSON decodes the body into dst and answers 400 when it cannot.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid query",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// pathID parses the named path parameter. A malformed id cannot name an
// existing row, so it is reported as not found.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": name + " " + apperr.ErrNotFound.Error()})
		return uuid.Nil, false
	}
	return id, true
}
