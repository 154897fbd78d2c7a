package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/services"
)

type TaskHandler struct {
	taskService    services.TaskService
	commentService services.CommentService
}

func NewTaskHandler(taskService services.TaskService, commentService services.CommentService) *TaskHandler {
	return &TaskHandler{taskService: taskService, commentService: commentService}
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	var filter services.TaskFilter
	if !bindQuery(c, &filter) {
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), middleware.IdentityFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var in services.CreateTaskInput
	if !bindJSON(c, &in) {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), middleware.IdentityFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.UpdateTaskInput
	if !bindJSON(c, &in) {
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), middleware.IdentityFrom(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), middleware.IdentityFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) GetComments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	comments, err := h.commentService.ListComments(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *TaskHandler) CreateComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in services.CommentInput
	if !bindJSON(c, &in) {
		return
	}

	comment, err := h.commentService.CreateComment(c.Request.Context(), middleware.IdentityFrom(c), id, in.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}
