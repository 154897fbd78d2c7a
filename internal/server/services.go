package server

import (
	"gorm.io/gorm"

	"teamtasks/backend/internal/cache"
	"teamtasks/backend/internal/config"
	"teamtasks/backend/internal/services"
)

// Services is the wired service graph shared by the HTTP layer and the
// background worker.
type Services struct {
	Access        services.AccessService
	Register      services.RegisterService
	Auth          services.AuthService
	Workspaces    services.WorkspaceService
	Projects      services.ProjectService
	Tasks         services.TaskService
	Comments      services.CommentService
	Activity      services.ActivityService
	Notifications services.NotificationService
	Search        services.SearchService
	Presets       services.FilterPresetService
	Admin         services.AdminService

	// Reminders is nil when no job queue is configured.
	Reminders *services.ReminderService
}

// NewServices wires every service over db. The accessible-workspace lookup
// goes through c; queue may be nil, which disables due-date reminders.
func NewServices(cfg *config.Config, db *gorm.DB, c cache.Cache, queue services.JobScheduler) *Services {
	accessSvc := services.AccessService(services.NewAccessService(db))
	if c != nil {
		accessSvc = services.NewCachedAccessService(accessSvc, c, cfg.Cache.WorkspaceTTL)
	}

	var taskOpts []services.TaskOption
	var reminders *services.ReminderService
	if queue != nil {
		reminders = services.NewReminderService(db, queue, cfg.Worker.ReminderLead)
		taskOpts = append(taskOpts, services.WithReminders(reminders))
	}

	return &Services{
		Access:        accessSvc,
		Register:      services.NewRegisterService(db, cfg.Auth.BCryptCost),
		Auth:          services.NewAuthService(db, cfg.Auth),
		Workspaces:    services.NewWorkspaceService(db, accessSvc),
		Projects:      services.NewProjectService(db, accessSvc),
		Tasks:         services.NewTaskService(db, accessSvc, taskOpts...),
		Comments:      services.NewCommentService(db, accessSvc),
		Activity:      services.NewActivityService(db, accessSvc),
		Notifications: services.NewNotificationService(db),
		Search:        services.NewSearchService(db, accessSvc),
		Presets:       services.NewFilterPresetService(db),
		Admin:         services.NewAdminService(db, accessSvc, cfg.Auth.BCryptCost),
		Reminders:     reminders,
	}
}
