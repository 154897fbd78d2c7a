package models_test

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/lifecycle"
	"teamtasks/backend/internal/models"
)

func openDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestUser_Defaults(t *testing.T) {
	db := openDB(t)

	user := models.User{Email: "ada@example.com", Name: "Ada", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, access.RoleUser, user.Role)
	assert.False(t, user.IsAdmin())
	assert.Equal(t, "ada", user.Handle())
	assert.Equal(t, access.Identity{UserID: user.ID, Role: access.RoleUser}, user.Identity())
}

func TestTask_DefaultStatusAndPresentation(t *testing.T) {
	db := openDB(t)

	projectID := uuid.Must(uuid.NewV4())
	inbox := models.Task{WorkspaceID: uuid.Must(uuid.NewV4()), UserID: uuid.Must(uuid.NewV4()), Title: "inbox"}
	board := models.Task{WorkspaceID: inbox.WorkspaceID, UserID: inbox.UserID, Title: "board", ProjectID: &projectID}
	require.NoError(t, db.Create(&inbox).Error)
	require.NoError(t, db.Create(&board).Error)

	assert.Equal(t, lifecycle.StatusActive, inbox.Status)
	assert.Equal(t, lifecycle.PresentedActive, inbox.Presented())
	assert.Equal(t, lifecycle.StatusActive, board.Status)
	assert.Equal(t, lifecycle.PresentedNotStarted, board.Presented())
	assert.NoError(t, lifecycle.Check(board.State()))
}

func TestComment_MentionsRoundTrip(t *testing.T) {
	db := openDB(t)

	mentioned := []uuid.UUID{uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())}
	comment := models.Comment{
		TaskID:   uuid.Must(uuid.NewV4()),
		UserID:   uuid.Must(uuid.NewV4()),
		Content:  "hi @ada @bob",
		Mentions: mentioned,
	}
	require.NoError(t, db.Create(&comment).Error)

	var loaded models.Comment
	require.NoError(t, db.First(&loaded, "id = ?", comment.ID).Error)
	assert.Equal(t, mentioned, loaded.Mentions)
}

func TestWorkspace_OwnedBy(t *testing.T) {
	owner := uuid.Must(uuid.NewV4())
	ws := models.Workspace{UserID: &owner}

	assert.True(t, ws.OwnedBy(owner))
	assert.False(t, ws.OwnedBy(uuid.Must(uuid.NewV4())))
	assert.False(t, (&models.Workspace{}).OwnedBy(owner))
}

func TestInvitation_DefaultStatus(t *testing.T) {
	db := openDB(t)

	inv := models.WorkspaceInvitation{
		WorkspaceID: uuid.Must(uuid.NewV4()),
		UserID:      uuid.Must(uuid.NewV4()),
		InvitedBy:   uuid.Must(uuid.NewV4()),
	}
	require.NoError(t, db.Create(&inv).Error)
	assert.Equal(t, models.InvitationPending, inv.Status)

	dup := models.WorkspaceInvitation{WorkspaceID: inv.WorkspaceID, UserID: inv.UserID, InvitedBy: inv.InvitedBy}
	assert.Error(t, db.Create(&dup).Error, "one invitation per workspace and user")
}

func TestUserSummary(t *testing.T) {
	var nilUser *models.User
	assert.Nil(t, nilUser.Summary())

	u := &models.User{ID: uuid.Must(uuid.NewV4()), Email: "a@b.c", Name: "A", CreatedAt: time.Now()}
	assert.Equal(t, &models.UserSummary{ID: u.ID, Email: "a@b.c", Name: "A"}, u.Summary())
}
