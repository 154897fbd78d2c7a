package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/services"
)

// UserHandler is the administrator's view of accounts and of the admin's
// own team.
type UserHandler struct {
	adminService services.AdminService
}

func NewUserHandler(adminService services.AdminService) *UserHandler {
	return &UserHandler{adminService: adminService}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.adminService.ListUsers(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.AdminUserUpdate
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.adminService.UpdateUser(c.Request.Context(), middleware.IdentityFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.adminService.DeleteUser(c.Request.Context(), middleware.IdentityFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) ListTeam(c *gin.Context) {
	team, err := h.adminService.ListTeam(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

func (h *UserHandler) AddTeamMember(c *gin.Context) {
	var in services.TeamInput
	if !bindJSON(c, &in) {
		return
	}

	member, err := h.adminService.AddTeamMember(c.Request.Context(), middleware.IdentityFrom(c), in.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *UserHandler) RemoveTeamMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.adminService.RemoveTeamMember(c.Request.Context(), middleware.IdentityFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
