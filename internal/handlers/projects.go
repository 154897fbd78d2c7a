package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/services"
)

type ProjectHandler struct {
	projectService services.ProjectService
}

func NewProjectHandler(projectService services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.ListProjects(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var in services.ProjectInput
	if !bindJSON(c, &in) {
		return
	}

	project, err := h.projectService.CreateProject(c.Request.Context(), middleware.IdentityFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.GetProject(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateProjectInput
	if !bindJSON(c, &in) {
		return
	}

	project, err := h.projectService.UpdateProject(c.Request.Context(), middleware.IdentityFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.DeleteProject(c.Request.Context(), middleware.IdentityFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandler) ListMembers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := h.projectService.ListMembers(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *ProjectHandler) AddMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.AddProjectMemberInput
	if !bindJSON(c, &in) {
		return
	}

	member, err := h.projectService.AddMember(c.Request.Context(), middleware.IdentityFrom(c), id, in.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	if err := h.projectService.RemoveMember(c.Request.Context(), middleware.IdentityFrom(c), id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
