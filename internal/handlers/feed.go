package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/services"
)

// FeedHandler serves the read-mostly views around tasks: notifications,
// the activity log and search.
type FeedHandler struct {
	notifications services.NotificationService
	activity      services.ActivityService
	search        services.SearchService
}

func NewFeedHandler(notifications services.NotificationService, activity services.ActivityService, search services.SearchService) *FeedHandler {
	return &FeedHandler{notifications: notifications, activity: activity, search: search}
}

type notificationQuery struct {
	Unread bool `form:"unread"`
	Limit  int  `form:"limit"`
}

func (h *FeedHandler) Notifications(c *gin.Context) {
	var q notificationQuery
	if !bindQuery(c, &q) {
		return
	}
	identity := middleware.IdentityFrom(c)

	items, err := h.notifications.ListNotifications(c.Request.Context(), identity, q.Unread, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notifications.UnreadCount(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "unread_count": unread})
}

func (h *FeedHandler) MarkNotifications(c *gin.Context) {
	var in services.MarkReadInput
	if !bindJSON(c, &in) {
		return
	}
	read := true
	if in.Read != nil {
		read = *in.Read
	}

	updated, err := h.notifications.MarkRead(c.Request.Context(), middleware.IdentityFrom(c), in.IDs, read)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *FeedHandler) Activity(c *gin.Context) {
	var filter services.ActivityFilter
	if !bindQuery(c, &filter) {
		return
	}

	entries, err := h.activity.List(c.Request.Context(), middleware.IdentityFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

type searchQuery struct {
	Q     string `form:"q"`
	Limit int    `form:"limit"`
}

func (h *FeedHandler) Search(c *gin.Context) {
	var q searchQuery
	if !bindQuery(c, &q) {
		return
	}

	result, err := h.search.Search(c.Request.Context(), middleware.IdentityFrom(c), q.Q, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
