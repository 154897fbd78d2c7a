package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/backend/internal/services"
)

type RefreshHandler struct {
	authService services.AuthService
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewRefreshHandler(authService services.AuthService) *RefreshHandler {
	return &RefreshHandler{authService: authService}
}

func (h *RefreshHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	tokens, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}
