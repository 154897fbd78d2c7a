package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/lifecycle"
	"teamtasks/backend/internal/models"
)

const (
	maxTitleLength       = 120
	maxResponsibleLength = 100
	maxPriority          = 3
)

type ProjectSummary struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Color  *string   `json:"color"`
}

// TaskView is a task as clients see it. Status is the presented value; the
// stored one is kept alongside for inbox-style consumers.
type TaskView struct {
	ID              uuid.UUID           `json:"id"`
	WorkspaceID     uuid.UUID           `json:"workspace_id"`
	UserID          uuid.UUID           `json:"user_id"`
	ProjectID       *uuid.UUID          `json:"project_id"`
	Project         *ProjectSummary     `json:"project"`
	Title           string              `json:"title"`
	Notes           *string             `json:"notes"`
	DueAt           *time.Time          `json:"due_at"`
	Priority        int                 `json:"priority"`
	Status          lifecycle.Presented `json:"status"`
	PersistedStatus lifecycle.Status    `json:"persisted_status"`
	CompletedAt     *time.Time          `json:"completed_at"`
	Responsible     *string             `json:"responsible"`
	ResponsibleID   *uuid.UUID          `json:"responsible_id"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func NewTaskView(t *models.Task) TaskView {
	view := TaskView{
		ID:              t.ID,
		WorkspaceID:     t.WorkspaceID,
		UserID:          t.UserID,
		ProjectID:       t.ProjectID,
		Title:           t.Title,
		Notes:           t.Notes,
		DueAt:           t.DueAt,
		Priority:        t.Priority,
		Status:          t.Presented(),
		PersistedStatus: t.Status,
		CompletedAt:     t.CompletedAt,
		Responsible:     t.Responsible,
		ResponsibleID:   t.ResponsibleID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.Project != nil {
		view.Project = &ProjectSummary{ID: t.Project.ID, UserID: t.Project.UserID, Name: t.Project.Name, Color: t.Project.Color}
	}
	return view
}

type CreateTaskInput struct {
	Title       string     `json:"title" binding:"required"`
	Notes       *string    `json:"notes"`
	DueAt       *time.Time `json:"due_at"`
	Priority    int        `json:"priority"`
	Status      string     `json:"status"`
	WorkspaceID *uuid.UUID `json:"workspace_id"`
	ProjectID   *uuid.UUID `json:"project_id"`
	Responsible *string    `json:"responsible"`
}

// UpdateTaskInput is a partial update. Fields left out of the request body
// are untouched; nullable fields are cleared by an explicit null.
type UpdateTaskInput struct {
	Title       Optional[string]    `json:"title"`
	Notes       Optional[string]    `json:"notes"`
	DueAt       Optional[time.Time] `json:"due_at"`
	Priority    Optional[int]       `json:"priority"`
	Status      Optional[string]    `json:"status"`
	ProjectID   Optional[uuid.UUID] `json:"project_id"`
	Responsible Optional[string]    `json:"responsible"`
}

type TaskFilter struct {
	Status      string `form:"status"`
	ProjectID   string `form:"project_id"`
	View        string `form:"view"`
	Search      string `form:"search"`
	Priority    string `form:"priority"`
	Responsible string `form:"responsible"`
	DateFrom    string `form:"date_from"`
	DateTo      string `form:"date_to"`
	// PresetID names one of the caller's saved presets; fields given
	// explicitly in the query take precedence over the preset's.
	PresetID string `form:"preset_id"`
}

type TaskService interface {
	ListTasks(ctx context.Context, id access.Identity, filter TaskFilter) ([]TaskView, error)
	GetTask(ctx context.Context, id access.Identity, taskID uuid.UUID) (*TaskView, error)
	CreateTask(ctx context.Context, id access.Identity, in CreateTaskInput) (*TaskView, error)
	UpdateTask(ctx context.Context, id access.Identity, taskID uuid.UUID, in UpdateTaskInput) (*TaskView, error)
	DeleteTask(ctx context.Context, id access.Identity, taskID uuid.UUID) error
}

// ReminderScheduler is told about every task whose due date was set or moved.
type ReminderScheduler interface {
	Schedule(ctx context.Context, task *models.Task) error
}

type TaskServiceImpl struct {
	db        *gorm.DB
	access    AccessService
	reminders ReminderScheduler
	now       func() time.Time
}

type TaskOption func(*TaskServiceImpl)

func WithReminders(r ReminderScheduler) TaskOption {
	return func(s *TaskServiceImpl) { s.reminders = r }
}

func WithClock(now func() time.Time) TaskOption {
	return func(s *TaskServiceImpl) { s.now = now }
}

func NewTaskService(db *gorm.DB, accessSvc AccessService, opts ...TaskOption) *TaskServiceImpl {
	s := &TaskServiceImpl{db: db, access: accessSvc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validPriority(p int) error {
	if p < 0 || p > maxPriority {
		return apperr.Invalid("priority", fmt.Sprintf("must be between 0 and %d", maxPriority))
	}
	return nil
}

func validResponsible(name *string) error {
	if name != nil && utf8.RuneCountInString(strings.TrimSpace(*name)) > maxResponsibleLength {
		return apperr.Invalid("responsible", fmt.Sprintf("must be at most %d characters", maxResponsibleLength))
	}
	return nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC().Truncate(time.Microsecond)
	return &u
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, id access.Identity, filter TaskFilter) ([]TaskView, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}

	if filter.PresetID != "" {
		presetID, err := parseID("preset_id", filter.PresetID)
		if err != nil {
			return nil, err
		}
		preset, err := loadPreset(ctx, s.db, id.UserID, presetID)
		if err != nil {
			return nil, err
		}
		filter = filter.withPreset(preset.Filters)
	}

	q := s.db.WithContext(ctx).Model(&models.Task{}).Preload("Project")

	// A readable project scopes the query by itself, so explicit project
	// grants see that project's tasks.
	if filter.ProjectID != "" {
		projectID, err := parseID("project_id", filter.ProjectID)
		if err != nil {
			return nil, err
		}
		if _, _, err := s.access.ProjectRelation(ctx, id, projectID); err != nil {
			return nil, err
		}
		q = q.Where("project_id = ?", projectID)
	} else {
		ids, err := s.access.AccessibleWorkspaceIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []TaskView{}, nil
		}
		q = q.Where("workspace_id IN ?", ids)
	}

	q, err := s.applyFilter(q, filter)
	if err != nil {
		return nil, err
	}

	var tasks []models.Task
	err = q.Order("priority DESC").Order("due_at ASC").Order("created_at DESC").Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, NewTaskView(&tasks[i]))
	}
	return views, nil
}

func (s *TaskServiceImpl) applyFilter(q *gorm.DB, filter TaskFilter) (*gorm.DB, error) {
	if filter.Status != "" {
		status, err := lifecycle.Persist(filter.Status)
		if err != nil {
			return nil, err
		}
		q = q.Where("status = ?", status)
		if lifecycle.BoardOnly(filter.Status) {
			q = q.Where("project_id IS NOT NULL")
		}
	}

	// Day boundaries are UTC, like stored due dates and date_from/date_to.
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)
	switch strings.ToLower(strings.TrimSpace(filter.View)) {
	case "":
	case "today":
		q = q.Where("due_at >= ? AND due_at < ?", today, tomorrow).Where("status <> ?", lifecycle.StatusCompleted)
	case "upcoming":
		q = q.Where("due_at >= ?", tomorrow).Where("status <> ?", lifecycle.StatusCompleted)
	case "completed":
		q = q.Where("status = ?", lifecycle.StatusCompleted)
	default:
		return nil, apperr.Invalid("view", "must be one of today, upcoming, completed")
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := likePattern(search)
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(notes) LIKE ? ESCAPE '\\')", pattern, pattern)
	}

	if filter.Priority != "" {
		priority, err := strconv.Atoi(strings.TrimSpace(filter.Priority))
		if err != nil {
			return nil, apperr.Invalid("priority", "must be an integer")
		}
		if err := validPriority(priority); err != nil {
			return nil, err
		}
		q = q.Where("priority = ?", priority)
	}

	if responsible := strings.TrimSpace(filter.Responsible); responsible != "" {
		q = q.Where("LOWER(responsible) LIKE ? ESCAPE '\\'", likePattern(responsible))
	}

	if filter.DateFrom != "" {
		from, err := parseDay("date_from", filter.DateFrom, false)
		if err != nil {
			return nil, err
		}
		q = q.Where("due_at >= ?", from)
	}
	if filter.DateTo != "" {
		to, err := parseDay("date_to", filter.DateTo, true)
		if err != nil {
			return nil, err
		}
		q = q.Where("due_at <= ?", to)
	}
	return q, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, id access.Identity, taskID uuid.UUID) (*TaskView, error) {
	task, _, err := s.access.TaskRelation(ctx, id, taskID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, s.db, task.ID)
}

func (s *TaskServiceImpl) view(ctx context.Context, db *gorm.DB, taskID uuid.UUID) (*TaskView, error) {
	var task models.Task
	if err := db.WithContext(ctx).Preload("Project").First(&task, "id = ?", taskID).Error; err != nil {
		return nil, notFound(err, "task")
	}
	view := NewTaskView(&task)
	return &view, nil
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, id access.Identity, in CreateTaskInput) (*TaskView, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}

	title, err := requireText("title", in.Title, maxTitleLength)
	if err != nil {
		return nil, err
	}
	if err := validPriority(in.Priority); err != nil {
		return nil, err
	}
	if err := validResponsible(in.Responsible); err != nil {
		return nil, err
	}
	var requested lifecycle.Status
	if in.Status != "" {
		if requested, err = lifecycle.Persist(in.Status); err != nil {
			return nil, err
		}
	}

	var created models.Task
	var view *TaskView
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc := NewAccessService(tx)

		var workspaceID uuid.UUID
		var rel access.Relation
		switch {
		case in.ProjectID != nil:
			project, prel, err := acc.ProjectRelation(ctx, id, *in.ProjectID)
			if err != nil {
				return projectTargetError(err)
			}
			if !access.CanAccess(prel) {
				return apperr.Denied("project grants are read-only")
			}
			if in.WorkspaceID != nil && *in.WorkspaceID != project.WorkspaceID {
				return apperr.Conflict("project belongs to another workspace")
			}
			workspaceID, rel = project.WorkspaceID, prel
		case in.WorkspaceID != nil:
			ws, wrel, err := acc.WorkspaceRelation(ctx, id, *in.WorkspaceID)
			if err != nil {
				return err
			}
			workspaceID, rel = ws.ID, wrel
		default:
			caller, err := loadUser(ctx, tx, id.UserID)
			if err != nil {
				return err
			}
			if caller.WorkspaceID == nil {
				return apperr.Conflict("account has no workspace")
			}
			ws, wrel, err := acc.WorkspaceRelation(ctx, id, *caller.WorkspaceID)
			if err != nil {
				return err
			}
			workspaceID, rel = ws.ID, wrel
		}

		task := models.Task{
			WorkspaceID: workspaceID,
			UserID:      id.UserID,
			ProjectID:   in.ProjectID,
			Title:       title,
			Notes:       emptyToNil(in.Notes),
			DueAt:       utcPtr(in.DueAt),
			Priority:    in.Priority,
		}

		if requestedResponsible := emptyToNil(in.Responsible); requestedResponsible != nil {
			label, responsibleID, err := s.resolveResponsible(ctx, tx, id, rel, workspaceID, requestedResponsible)
			if err != nil {
				return err
			}
			task.Responsible, task.ResponsibleID = label, responsibleID
		}

		state := lifecycle.State{Status: lifecycle.InitialStatus(task.ProjectID != nil)}
		if requested != "" {
			state = lifecycle.Transition(state, requested, s.now().UTC())
		}
		task.Status, task.CompletedAt = state.Status, state.CompletedAt

		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		entry := taskActivity(&task, id.UserID, models.ActivityTaskCreated, fmt.Sprintf("created task %q", task.Title), nil)
		if err := recordActivity(tx, entry); err != nil {
			return err
		}

		created = task
		view, err = s.view(ctx, tx, task.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created.DueAt != nil {
		s.scheduleReminder(ctx, &created)
	}
	return view, nil
}

// UpdateTask authorizes every requested change before applying any of them.
// A rejected field rejects the whole update.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, id access.Identity, taskID uuid.UUID, in UpdateTaskInput) (*TaskView, error) {
	if err := access.RequireIdentity(id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Title.Set {
		if in.Title.Value == nil {
			return nil, apperr.Invalid("title", "cannot be null")
		}
		title, err := requireText("title", *in.Title.Value, maxTitleLength)
		if err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if in.Notes.Set {
		updates["notes"] = nullable(emptyToNil(in.Notes.Value))
	}
	if in.DueAt.Set {
		updates["due_at"] = nullable(utcPtr(in.DueAt.Value))
	}
	if in.Priority.Set {
		if in.Priority.Value == nil {
			return nil, apperr.Invalid("priority", "cannot be null")
		}
		if err := validPriority(*in.Priority.Value); err != nil {
			return nil, err
		}
		updates["priority"] = *in.Priority.Value
	}
	var requested lifecycle.Status
	if in.Status.Set {
		if in.Status.Value == nil {
			return nil, apperr.Invalid("status", "cannot be null")
		}
		var err error
		if requested, err = lifecycle.Persist(*in.Status.Value); err != nil {
			return nil, err
		}
	}
	if in.Responsible.Set {
		if err := validResponsible(in.Responsible.Value); err != nil {
			return nil, err
		}
	}

	var updated models.Task
	var view *TaskView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acc := NewAccessService(tx)
		task, rel, err := acc.TaskRelation(ctx, id, taskID)
		if err != nil {
			return err
		}
		if !access.CanAccess(rel) {
			return apperr.Denied("project grants are read-only")
		}

		if in.ProjectID.Set {
			if in.ProjectID.Value == nil {
				updates["project_id"] = nil
			} else {
				project, _, err := acc.ProjectRelation(ctx, id, *in.ProjectID.Value)
				if err != nil {
					return projectTargetError(err)
				}
				if project.WorkspaceID != task.WorkspaceID {
					return apperr.Conflict("project belongs to another workspace")
				}
				updates["project_id"] = project.ID
			}
		}

		if in.Responsible.Set {
			label, responsibleID, err := s.resolveResponsible(ctx, tx, id, rel, task.WorkspaceID, in.Responsible.Value)
			if err != nil {
				return err
			}
			updates["responsible"] = nullable(label)
			updates["responsible_id"] = nullable(responsibleID)
		}

		kind := models.ActivityTaskUpdated
		if requested != "" {
			next := lifecycle.Transition(task.State(), requested, s.now().UTC())
			if err := lifecycle.Check(next); err != nil {
				return err
			}
			updates["status"] = next.Status
			updates["completed_at"] = nullable(next.CompletedAt)
			if next.Status == lifecycle.StatusCompleted && task.Status != lifecycle.StatusCompleted {
				kind = models.ActivityTaskCompleted
			}
		}

		if len(updates) == 0 {
			updated = *task
			view, err = s.view(ctx, tx, task.ID)
			return err
		}

		if err := tx.Model(task).Updates(updates).Error; err != nil {
			return err
		}

		fields := make([]string, 0, len(updates))
		for field := range updates {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		description := fmt.Sprintf("updated task %q", task.Title)
		if kind == models.ActivityTaskCompleted {
			description = fmt.Sprintf("completed task %q", task.Title)
		}
		entry := taskActivity(task, id.UserID, kind, description, map[string]interface{}{"fields": fields})
		if err := recordActivity(tx, entry); err != nil {
			return err
		}

		if err := tx.First(&updated, "id = ?", task.ID).Error; err != nil {
			return err
		}
		view, err = s.view(ctx, tx, task.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if in.DueAt.Set && updated.DueAt != nil {
		s.scheduleReminder(ctx, &updated)
	}
	return view, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id access.Identity, taskID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, rel, err := NewAccessService(tx).TaskRelation(ctx, id, taskID)
		if err != nil {
			return err
		}
		if !access.CanDeleteTask(rel) {
			return apperr.Denied("only the task creator or the workspace owner may delete a task")
		}

		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(task).Error; err != nil {
			return err
		}
		entry := taskActivity(task, id.UserID, models.ActivityTaskDeleted,
			fmt.Sprintf("deleted task %q", task.Title),
			map[string]interface{}{"task_id": task.ID.String(), "title": task.Title})
		return recordActivity(tx, entry)
	})
}

// resolveResponsible authorizes the requested label, then binds it to a
// workspace participant. On update a nil or blank request clears the
// assignment, which only the workspace owner may do; on create a blank
// request never reaches here.
func (s *TaskServiceImpl) resolveResponsible(ctx context.Context, tx *gorm.DB, id access.Identity, rel access.Relation, workspaceID uuid.UUID, requested *string) (*string, *uuid.UUID, error) {
	caller, err := loadUser(ctx, tx, id.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !access.CanAssignResponsible(rel, caller.Name, requested) {
		return nil, nil, apperr.Denied("only the workspace owner may assign someone else")
	}
	if requested == nil || strings.TrimSpace(*requested) == "" {
		return nil, nil, nil
	}

	name := strings.TrimSpace(*requested)
	if name == strings.TrimSpace(caller.Name) {
		return &name, &caller.ID, nil
	}

	participants, err := workspaceParticipants(ctx, tx, workspaceID)
	if err != nil {
		return nil, nil, err
	}
	for i := range participants {
		if strings.EqualFold(strings.TrimSpace(participants[i].Name), name) {
			label := participants[i].Name
			return &label, &participants[i].ID, nil
		}
	}
	return nil, nil, apperr.Invalid("responsible", "must name a member of the workspace")
}

func projectTargetError(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Conflict("project_id does not name a project you can use")
	}
	return err
}

func (s *TaskServiceImpl) scheduleReminder(ctx context.Context, task *models.Task) {
	if s.reminders == nil {
		return
	}
	if err := s.reminders.Schedule(ctx, task); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("task_id", task.ID.String()).Msg("failed to schedule reminder")
	}
}
