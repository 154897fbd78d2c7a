package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/services"
)

type AuthHandler struct {
	authService services.AuthService
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	*services.TokenPair
	User *models.User `json:"user"`
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Token(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.LoginUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	tokens, err := h.authService.GenerateToken(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{TokenPair: tokens, User: user})
}
