package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"teamtasks/backend/internal/config"
	"teamtasks/backend/internal/handlers"
	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/monitoring"
)

// NewRouter mounts the API under /api and the probes at the root.
func NewRouter(cfg *config.Config, logger zerolog.Logger, svc *Services, monitor *monitoring.Monitor, limiter *middleware.RateLimiter) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RecoveryWithLog())
	router.Use(monitor.MetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", monitor.HealthHandler())
	router.GET("/ready", monitor.ReadinessHandler())
	router.GET("/live", monitor.LivenessHandler())
	router.GET("/metrics", monitor.MetricsHandler())

	limit := func(c *gin.Context) { c.Next() }
	if limiter != nil {
		limit = middleware.RateLimitMiddleware(limiter)
	}

	api := router.Group("/api")

	auth := api.Group("/auth", limit)
	{
		auth.POST("/register", handlers.NewRegisterHandler(svc.Register).Registration)
		auth.POST("/token", handlers.NewAuthHandler(svc.Auth).Token)
		auth.POST("/refresh", handlers.NewRefreshHandler(svc.Auth).Refresh)
		auth.POST("/logout", handlers.NewLogoutHandler(svc.Auth).Logout)
	}

	protected := api.Group("", middleware.AuthzMiddleware(svc.Auth), limit)

	workspaces := handlers.NewWorkspaceHandler(svc.Workspaces)
	protected.GET("/workspace", workspaces.Current)
	protected.GET("/workspace/members", workspaces.Members)
	protected.DELETE("/workspace/members/:id", workspaces.RemoveMember)
	protected.POST("/workspace/invitations", workspaces.Invite)
	protected.GET("/invitations", workspaces.PendingInvitations)
	protected.POST("/invitations/:id/accept", workspaces.Accept)
	protected.POST("/invitations/:id/deny", workspaces.Deny)

	projects := handlers.NewProjectHandler(svc.Projects)
	protected.GET("/projects", projects.List)
	protected.POST("/projects", projects.Create)
	protected.GET("/projects/:id", projects.Get)
	protected.PATCH("/projects/:id", projects.Update)
	protected.DELETE("/projects/:id", projects.Delete)
	protected.GET("/projects/:id/members", projects.ListMembers)
	protected.POST("/projects/:id/members", projects.AddMember)
	protected.DELETE("/projects/:id/members/:userId", projects.RemoveMember)

	tasks := handlers.NewTaskHandler(svc.Tasks, svc.Comments)
	protected.GET("/tasks", tasks.GetTasks)
	protected.POST("/tasks", tasks.CreateTask)
	protected.GET("/tasks/:id", tasks.GetTaskByID)
	protected.PATCH("/tasks/:id", tasks.UpdateTask)
	protected.DELETE("/tasks/:id", tasks.DeleteTask)
	protected.GET("/tasks/:id/comments", tasks.GetComments)
	protected.POST("/tasks/:id/comments", tasks.CreateComment)

	feed := handlers.NewFeedHandler(svc.Notifications, svc.Activity, svc.Search)
	protected.GET("/search", feed.Search)
	protected.GET("/activity", feed.Activity)
	protected.GET("/notifications", feed.Notifications)
	protected.PATCH("/notifications", feed.MarkNotifications)

	presets := handlers.NewFilterPresetHandler(svc.Presets)
	protected.GET("/filter-presets", presets.List)
	protected.POST("/filter-presets", presets.Create)
	protected.PATCH("/filter-presets/:id", presets.Update)
	protected.DELETE("/filter-presets/:id", presets.Delete)

	admin := protected.Group("/admin", middleware.AdminOnlyMiddleware())
	{
		users := handlers.NewUserHandler(svc.Admin)
		admin.GET("/users", users.ListUsers)
		admin.PATCH("/users/:id", users.UpdateUser)
		admin.DELETE("/users/:id", users.DeleteUser)
		admin.GET("/team", users.ListTeam)
		admin.POST("/team", users.AddTeamMember)
		admin.DELETE("/team/:id", users.RemoveTeamMember)
	}

	return router
}
