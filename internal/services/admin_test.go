package services_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/services"
)

type AdminServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	service *services.AdminServiceImpl

	admin *models.User
	user  *models.User
	other *models.User
}

func (suite *AdminServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = newTestDB(suite.T())
	suite.service = services.NewAdminService(suite.db, services.NewAccessService(suite.db), bcrypt.MinCost)

	admin, err := services.NewRegisterService(suite.db, bcrypt.MinCost).EnsureAdmin(suite.ctx, services.RegistrationRequest{
		Email: "root@example.com", Name: "Root", Password: "password123",
	})
	suite.Require().NoError(err)
	suite.admin = admin
	suite.user = register(suite.T(), suite.db, "Uma User")
	suite.other = register(suite.T(), suite.db, "Otto Other")
}

func (suite *AdminServiceTestSuite) TestNonAdminsAreDenied() {
	_, err := suite.service.ListUsers(suite.ctx, idOf(suite.user))
	suite.ErrorIs(err, apperr.ErrAccessDenied)
	_, err = suite.service.AddTeamMember(suite.ctx, idOf(suite.user), suite.other.Email)
	suite.ErrorIs(err, apperr.ErrAccessDenied)
	suite.ErrorIs(suite.service.DeleteUser(suite.ctx, idOf(suite.user), suite.other.ID), apperr.ErrAccessDenied)
}

func (suite *AdminServiceTestSuite) TestListAndUpdateUsers() {
	users, err := suite.service.ListUsers(suite.ctx, idOf(suite.admin))
	suite.Require().NoError(err)
	suite.Len(users, 3)

	_, err = suite.service.UpdateUser(suite.ctx, idOf(suite.admin), suite.user.ID, services.AdminUserUpdate{Email: services.Some(suite.other.Email)})
	suite.ErrorIs(err, apperr.ErrConflict)

	updated, err := suite.service.UpdateUser(suite.ctx, idOf(suite.admin), suite.user.ID, services.AdminUserUpdate{
		Email:    services.Some("uma@example.com"),
		Password: services.Some("brand-new-pass"),
		Role:     services.Some(access.RoleAdmin),
	})
	suite.Require().NoError(err)
	suite.Equal("uma@example.com", updated.Email)
	suite.True(updated.IsAdmin())
	suite.True(services.VerifyPassword(updated.PasswordHash, "brand-new-pass"))

	_, err = suite.service.UpdateUser(suite.ctx, idOf(suite.admin), suite.user.ID, services.AdminUserUpdate{Role: services.Some(access.Role("ROOT"))})
	suite.ErrorIs(err, apperr.ErrValidation)
	_, err = suite.service.UpdateUser(suite.ctx, idOf(suite.admin), suite.user.ID, services.AdminUserUpdate{Password: services.Some("short")})
	suite.ErrorIs(err, apperr.ErrValidation)
	_, err = suite.service.UpdateUser(suite.ctx, idOf(suite.admin), uuid.Must(uuid.NewV4()), services.AdminUserUpdate{})
	suite.ErrorIs(err, apperr.ErrNotFound)
}

func (suite *AdminServiceTestSuite) TestDeleteUserRemovesOwnedData() {
	suite.ErrorIs(suite.service.DeleteUser(suite.ctx, idOf(suite.admin), suite.admin.ID), apperr.ErrValidation)

	join(suite.T(), suite.db, *suite.user.WorkspaceID, suite.other)
	task := models.Task{WorkspaceID: *suite.user.WorkspaceID, UserID: suite.other.ID, Title: "in doomed workspace"}
	suite.Require().NoError(suite.db.Create(&task).Error)
	suite.Require().NoError(suite.db.Create(&models.Comment{TaskID: task.ID, UserID: suite.other.ID, Content: "hi"}).Error)
	suite.Require().NoError(suite.db.Create(&models.Token{UserID: suite.user.ID, RefreshToken: uuid.Must(uuid.NewV4())}).Error)

	suite.Require().NoError(suite.service.DeleteUser(suite.ctx, idOf(suite.admin), suite.user.ID))

	counts := map[string]interface{}{
		"users":      &models.User{},
		"workspaces": &models.Workspace{},
		"members":    &models.WorkspaceMember{},
		"tasks":      &models.Task{},
		"comments":   &models.Comment{},
		"tokens":     &models.Token{},
	}
	want := map[string]int64{"users": 2, "workspaces": 2, "members": 0, "tasks": 0, "comments": 0, "tokens": 0}
	for name, model := range counts {
		var n int64
		suite.Require().NoError(suite.db.Model(model).Count(&n).Error)
		suite.Equal(want[name], n, name)
	}

	suite.ErrorIs(suite.service.DeleteUser(suite.ctx, idOf(suite.admin), suite.user.ID), apperr.ErrNotFound)
}

func (suite *AdminServiceTestSuite) TestTeam() {
	_, err := suite.service.AddTeamMember(suite.ctx, idOf(suite.admin), suite.admin.Email)
	suite.ErrorIs(err, apperr.ErrValidation)
	_, err = suite.service.AddTeamMember(suite.ctx, idOf(suite.admin), "ghost@example.com")
	suite.ErrorIs(err, apperr.ErrNotFound)

	member, err := suite.service.AddTeamMember(suite.ctx, idOf(suite.admin), suite.user.Email)
	suite.Require().NoError(err)
	suite.Equal(suite.user.ID, member.UserID)

	_, err = suite.service.AddTeamMember(suite.ctx, idOf(suite.admin), suite.user.Email)
	suite.ErrorIs(err, apperr.ErrConflict)

	team, err := suite.service.ListTeam(suite.ctx, idOf(suite.admin))
	suite.Require().NoError(err)
	suite.Require().Len(team, 1)
	suite.Equal(suite.user.Email, team[0].User.Email)

	suite.Require().NoError(suite.service.RemoveTeamMember(suite.ctx, idOf(suite.admin), member.ID))
	suite.ErrorIs(suite.service.RemoveTeamMember(suite.ctx, idOf(suite.admin), member.ID), apperr.ErrNotFound)
}

func TestAdminServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceTestSuite))
}
