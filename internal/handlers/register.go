package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/services"
)

type RegisterHandler struct {
	registerService services.RegisterService
}

func NewRegisterHandler(registerService services.RegisterService) *RegisterHandler {
	return &RegisterHandler{registerService: registerService}
}

type RegistrationResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

func (h *RegisterHandler) Registration(c *gin.Context) {
	var req services.RegistrationRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.registerService.RegisterUser(c.Request.Context(), req)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Info().Err(err).Msg("registration rejected")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegistrationResponse{
		Message: "Your account has been created successfully.",
		User:    user,
	})
}
