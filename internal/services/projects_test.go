package services_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/services"
)

func TestProjectService_CreateListAndCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := register(t, db, "Olivia Owner")
	member := register(t, db, "Max Member")
	join(t, db, *owner.WorkspaceID, member)

	accessSvc := services.NewAccessService(db)
	svc := services.NewProjectService(db, accessSvc)
	tasks := services.NewTaskService(db, accessSvc)

	project, err := svc.CreateProject(ctx, idOf(owner), services.ProjectInput{Name: "  Launch  ", Color: ptr("#00aaFF")})
	require.NoError(t, err)
	assert.Equal(t, "Launch", project.Name)
	assert.Equal(t, "#00aaFF", *project.Color)
	assert.True(t, project.IsOwner)

	for _, title := range []string{"a", "b"} {
		_, err := tasks.CreateTask(ctx, idOf(member), services.CreateTaskInput{Title: title, ProjectID: &project.ID})
		require.NoError(t, err)
	}

	listed, err := svc.ListProjects(ctx, idOf(member))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, int64(2), listed[0].TaskCount)
	assert.False(t, listed[0].IsOwner)

	for _, bad := range []services.ProjectInput{
		{Name: ""},
		{Name: "this project name is far too long to be accepted by the service"},
		{Name: "ok", Color: ptr("red")},
		{Name: "ok", Color: ptr("#12345")},
	} {
		_, err := svc.CreateProject(ctx, idOf(owner), bad)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", bad)
	}
}

func TestProjectService_OnlyOwnerEdits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := register(t, db, "Olivia Owner")
	member := register(t, db, "Max Member")
	outsider := register(t, db, "Oscar Outsider")
	join(t, db, *owner.WorkspaceID, member)
	svc := services.NewProjectService(db, services.NewAccessService(db))

	project, err := svc.CreateProject(ctx, idOf(owner), services.ProjectInput{Name: "Launch"})
	require.NoError(t, err)

	_, err = svc.UpdateProject(ctx, idOf(member), project.ID, services.UpdateProjectInput{Name: services.Some("Mine")})
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)
	_, err = svc.UpdateProject(ctx, idOf(outsider), project.ID, services.UpdateProjectInput{Name: services.Some("Mine")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteProject(ctx, idOf(member), project.ID), apperr.ErrAccessDenied)

	updated, err := svc.UpdateProject(ctx, idOf(owner), project.ID, services.UpdateProjectInput{
		Name:  services.Some("Relaunch"),
		Color: services.Some("#ABCDEF"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Relaunch", updated.Name)
	assert.Equal(t, "#ABCDEF", *updated.Color)

	cleared, err := svc.UpdateProject(ctx, idOf(owner), project.ID, services.UpdateProjectInput{Color: services.Null[string]()})
	require.NoError(t, err)
	assert.Nil(t, cleared.Color)
}

func TestProjectService_DeleteMovesTasksToInbox(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := register(t, db, "Olivia Owner")
	accessSvc := services.NewAccessService(db)
	svc := services.NewProjectService(db, accessSvc)
	tasks := services.NewTaskService(db, accessSvc)

	project, err := svc.CreateProject(ctx, idOf(owner), services.ProjectInput{Name: "Launch"})
	require.NoError(t, err)
	task, err := tasks.CreateTask(ctx, idOf(owner), services.CreateTaskInput{Title: "Design", ProjectID: &project.ID, Status: "FINISHED"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.ProjectMember{ProjectID: project.ID, UserID: uuid.Must(uuid.NewV4())}).Error)

	require.NoError(t, svc.DeleteProject(ctx, idOf(owner), project.ID))

	after, err := tasks.GetTask(ctx, idOf(owner), task.ID)
	require.NoError(t, err)
	assert.Nil(t, after.ProjectID)
	assert.Equal(t, "COMPLETED", string(after.Status))

	var grants int64
	require.NoError(t, db.Model(&models.ProjectMember{}).Count(&grants).Error)
	assert.Zero(t, grants)

	_, err = svc.GetProject(ctx, idOf(owner), project.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProjectService_Members(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := register(t, db, "Olivia Owner")
	guest := register(t, db, "Gus Guest")
	svc := services.NewProjectService(db, services.NewAccessService(db))

	project, err := svc.CreateProject(ctx, idOf(owner), services.ProjectInput{Name: "Launch"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, idOf(owner), project.ID, owner.ID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.AddMember(ctx, idOf(owner), project.ID, uuid.Must(uuid.NewV4()))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	member, err := svc.AddMember(ctx, idOf(owner), project.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, guest.ID, member.UserID)

	_, err = svc.AddMember(ctx, idOf(owner), project.ID, guest.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	members, err := svc.ListMembers(ctx, idOf(guest), project.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, guest.Email, members[0].User.Email)

	visible, err := svc.ListProjects(ctx, idOf(guest))
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	assert.ErrorIs(t, svc.RemoveMember(ctx, idOf(guest), project.ID, guest.ID), apperr.ErrAccessDenied)
	require.NoError(t, svc.RemoveMember(ctx, idOf(owner), project.ID, guest.ID))
	assert.ErrorIs(t, svc.RemoveMember(ctx, idOf(owner), project.ID, guest.ID), apperr.ErrNotFound)

	_, err = svc.GetProject(ctx, idOf(guest), project.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestProjectService_AdminAddsOnlyTeamMembers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := register(t, db, "Ada Admin")
	require.NoError(t, db.Model(admin).Update("role", access.RoleAdmin).Error)
	admin.Role = access.RoleAdmin
	guest := register(t, db, "Gus Guest")
	svc := services.NewProjectService(db, services.NewAccessService(db))

	project, err := svc.CreateProject(ctx, idOf(admin), services.ProjectInput{Name: "Ops"})
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, idOf(admin), project.ID, guest.ID)
	assert.ErrorIs(t, err, apperr.ErrAccessDenied)

	require.NoError(t, db.Create(&models.TeamMember{AdminID: admin.ID, UserID: guest.ID}).Error)
	_, err = svc.AddMember(ctx, idOf(admin), project.ID, guest.ID)
	assert.NoError(t, err)
}
