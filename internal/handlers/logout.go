package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"teamtasks/backend/internal/services"
)

type LogoutHandler struct {
	authService services.AuthService
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewLogoutHandler(authService services.AuthService) *LogoutHandler {
	return &LogoutHandler{authService: authService}
}

// Logout always answers 200 so clients can drop their tokens regardless of
// whether the refresh token was still known.
func (h *LogoutHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), req.RefreshToken); err != nil {
		zerolog.Ctx(c.Request.Context()).Debug().Err(err).Msg("revoke refresh token")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
