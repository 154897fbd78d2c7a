package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/services"
)

type WorkspaceHandler struct {
	workspaceService services.WorkspaceService
}

func NewWorkspaceHandler(workspaceService services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

func (h *WorkspaceHandler) Current(c *gin.Context) {
	ws, err := h.workspaceService.Current(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

func (h *WorkspaceHandler) Members(c *gin.Context) {
	members, err := h.workspaceService.ListMembers(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.workspaceService.RemoveMember(c.Request.Context(), middleware.IdentityFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *WorkspaceHandler) Invite(c *gin.Context) {
	var in services.InviteInput
	if !bindJSON(c, &in) {
		return
	}

	invitation, err := h.workspaceService.Invite(c.Request.Context(), middleware.IdentityFrom(c), in.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invitation)
}

func (h *WorkspaceHandler) PendingInvitations(c *gin.Context) {
	invitations, err := h.workspaceService.PendingInvitations(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invitations)
}

func (h *WorkspaceHandler) Accept(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	member, err := h.workspaceService.AcceptInvitation(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *WorkspaceHandler) Deny(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.workspaceService.DenyInvitation(c.Request.Context(), middleware.IdentityFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invitation denied"})
}
