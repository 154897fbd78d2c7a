package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"teamtasks/backend/internal/lifecycle"
	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/worker"
)

type JobScheduler interface {
	EnqueueAt(ctx context.Context, queue string, jobType worker.JobType, payload map[string]interface{}, processAt time.Time) error
}

// ReminderService turns due dates into DUE_SOON notifications through the
// job queue.
type ReminderService struct {
	db    *gorm.DB
	queue JobScheduler
	lead  time.Duration
}

func NewReminderService(db *gorm.DB, queue JobScheduler, lead time.Duration) *ReminderService {
	return &ReminderService{db: db, queue: queue, lead: lead}
}

func (s *ReminderService) Schedule(ctx context.Context, task *models.Task) error {
	if task.DueAt == nil || task.Status == lifecycle.StatusCompleted {
		return nil
	}
	payload := map[string]interface{}{
		"task_id": task.ID.String(),
		"due_at":  task.DueAt.UTC().Format(time.RFC3339Nano),
	}
	return s.queue.EnqueueAt(ctx, worker.ReminderQueue, worker.JobTypeTaskReminder, payload, task.DueAt.Add(-s.lead))
}

// HandleReminder is the worker handler for task_reminder jobs. Reminders for
// deleted, completed or rescheduled tasks are dropped silently.
func (s *ReminderService) HandleReminder(ctx context.Context, job *worker.Job) error {
	rawID, _ := job.Payload["task_id"].(string)
	rawDue, _ := job.Payload["due_at"].(string)
	taskID, err := uuid.FromString(rawID)
	if err != nil {
		return fmt.Errorf("reminder %s: bad task_id %q", job.ID, rawID)
	}
	dueAt, err := time.Parse(time.RFC3339Nano, rawDue)
	if err != nil {
		return fmt.Errorf("reminder %s: bad due_at %q", job.ID, rawDue)
	}

	logger := zerolog.Ctx(ctx).With().Str("job_id", job.ID).Str("task_id", taskID.String()).Logger()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Debug().Msg("reminder skipped: task deleted")
				return nil
			}
			return err
		}
		if task.Status == lifecycle.StatusCompleted || task.DueAt == nil || !task.DueAt.Equal(dueAt) {
			logger.Debug().Msg("reminder skipped: task completed or rescheduled")
			return nil
		}

		recipients := []uuid.UUID{task.UserID}
		if task.ResponsibleID != nil && *task.ResponsibleID != task.UserID {
			recipients = append(recipients, *task.ResponsibleID)
		}
		for _, userID := range recipients {
			notification := models.Notification{
				UserID:  userID,
				Type:    models.NotificationDueSoon,
				Title:   "Task due soon",
				Message: fmt.Sprintf("%q is due %s", task.Title, task.DueAt.UTC().Format(time.RFC1123)),
				Link:    taskLink(&task),
			}
			if err := tx.Create(&notification).Error; err != nil {
				return err
			}
		}
		logger.Info().Int("recipients", len(recipients)).Msg("due reminder sent")
		return nil
	})
}
