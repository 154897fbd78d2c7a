package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/cache"
	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/services"
)

type WorkspaceServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	access  *services.CachedAccessService
	service *services.WorkspaceServiceImpl

	owner    *models.User
	invitee  *models.User
	stranger *models.User
}

func (suite *WorkspaceServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = newTestDB(suite.T())
	suite.access = services.NewCachedAccessService(services.NewAccessService(suite.db), cache.NewMemoryCache(), time.Minute)
	suite.service = services.NewWorkspaceService(suite.db, suite.access)

	suite.owner = register(suite.T(), suite.db, "Olivia Owner")
	suite.invitee = register(suite.T(), suite.db, "Ivy Invitee")
	suite.stranger = register(suite.T(), suite.db, "Sam Stranger")
}

func (suite *WorkspaceServiceTestSuite) TestCurrentPrefersOwnedWorkspace() {
	ws, err := suite.service.Current(suite.ctx, idOf(suite.owner))
	suite.Require().NoError(err)
	suite.Equal(*suite.owner.WorkspaceID, ws.ID)
	suite.Equal("Olivia Owner's Workspace", ws.Name)
	suite.True(ws.IsOwner)
	suite.Require().Len(ws.Members, 1)
	suite.Equal(models.MemberRoleOwner, ws.Members[0].Role)
	suite.Nil(ws.Members[0].ID)
}

func (suite *WorkspaceServiceTestSuite) TestInviteAcceptFlow() {
	// The invitee's set is cached before they join.
	before, err := suite.access.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.invitee))
	suite.Require().NoError(err)
	suite.Len(before, 1)

	invitation, err := suite.service.Invite(suite.ctx, idOf(suite.owner), "IVY.INVITEE@example.com")
	suite.Require().NoError(err)
	suite.Equal(models.InvitationPending, invitation.Status)

	_, err = suite.service.Invite(suite.ctx, idOf(suite.owner), suite.invitee.Email)
	suite.ErrorIs(err, apperr.ErrConflict)

	pending, err := suite.service.PendingInvitations(suite.ctx, idOf(suite.invitee))
	suite.Require().NoError(err)
	suite.Require().Len(pending, 1)
	suite.Equal(suite.owner.ID, pending[0].Inviter.ID)
	suite.Equal("Olivia Owner's Workspace", pending[0].Workspace.Name)

	_, err = suite.service.AcceptInvitation(suite.ctx, idOf(suite.stranger), invitation.ID)
	suite.ErrorIs(err, apperr.ErrNotFound)

	member, err := suite.service.AcceptInvitation(suite.ctx, idOf(suite.invitee), invitation.ID)
	suite.Require().NoError(err)
	suite.Equal(models.MemberRoleMember, member.Role)
	suite.Equal(*suite.owner.WorkspaceID, member.WorkspaceID)

	after, err := suite.access.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.invitee))
	suite.Require().NoError(err)
	suite.Contains(after, *suite.owner.WorkspaceID)

	_, err = suite.service.AcceptInvitation(suite.ctx, idOf(suite.invitee), invitation.ID)
	suite.ErrorIs(err, apperr.ErrConflict)

	_, err = suite.service.Invite(suite.ctx, idOf(suite.owner), suite.invitee.Email)
	suite.ErrorIs(err, apperr.ErrConflict, "already a member")

	members, err := suite.service.ListMembers(suite.ctx, idOf(suite.owner))
	suite.Require().NoError(err)
	suite.Len(members, 2)
}

func (suite *WorkspaceServiceTestSuite) TestInviteValidation() {
	_, err := suite.service.Invite(suite.ctx, idOf(suite.owner), suite.owner.Email)
	suite.ErrorIs(err, apperr.ErrValidation)

	_, err = suite.service.Invite(suite.ctx, idOf(suite.owner), "not-an-email")
	suite.ErrorIs(err, apperr.ErrValidation)

	_, err = suite.service.Invite(suite.ctx, idOf(suite.owner), "ghost@example.com")
	suite.ErrorIs(err, apperr.ErrNotFound)

	loner := models.User{Email: "loner@example.com", Name: "Loner", PasswordHash: "x"}
	suite.Require().NoError(suite.db.Create(&loner).Error)
	_, err = suite.service.Invite(suite.ctx, loner.Identity(), suite.invitee.Email)
	suite.ErrorIs(err, apperr.ErrAccessDenied)
}

func (suite *WorkspaceServiceTestSuite) TestDenyThenReinvite() {
	invitation, err := suite.service.Invite(suite.ctx, idOf(suite.owner), suite.invitee.Email)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.DenyInvitation(suite.ctx, idOf(suite.invitee), invitation.ID))
	suite.ErrorIs(suite.service.DenyInvitation(suite.ctx, idOf(suite.invitee), invitation.ID), apperr.ErrConflict)

	again, err := suite.service.Invite(suite.ctx, idOf(suite.owner), suite.invitee.Email)
	suite.Require().NoError(err)
	suite.Equal(invitation.ID, again.ID)
	suite.Equal(models.InvitationPending, again.Status)

	var count int64
	suite.Require().NoError(suite.db.Model(&models.WorkspaceInvitation{}).Count(&count).Error)
	suite.Equal(int64(1), count)
}

func (suite *WorkspaceServiceTestSuite) TestRemoveMember() {
	invitation, err := suite.service.Invite(suite.ctx, idOf(suite.owner), suite.invitee.Email)
	suite.Require().NoError(err)
	member, err := suite.service.AcceptInvitation(suite.ctx, idOf(suite.invitee), invitation.ID)
	suite.Require().NoError(err)

	err = suite.service.RemoveMember(suite.ctx, idOf(suite.stranger), member.ID)
	suite.ErrorIs(err, apperr.ErrNotFound)

	err = suite.service.RemoveMember(suite.ctx, idOf(suite.invitee), member.ID)
	suite.ErrorIs(err, apperr.ErrAccessDenied)

	suite.Require().NoError(suite.service.RemoveMember(suite.ctx, idOf(suite.owner), member.ID))

	ids, err := suite.access.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.invitee))
	suite.Require().NoError(err)
	suite.NotContains(ids, *suite.owner.WorkspaceID)

	err = suite.service.RemoveMember(suite.ctx, idOf(suite.owner), uuid.Must(uuid.NewV4()))
	suite.ErrorIs(err, apperr.ErrNotFound)
}

func (suite *WorkspaceServiceTestSuite) TestCurrentFallsBackToMembership() {
	loner := models.User{Email: "loner@example.com", Name: "Loner", PasswordHash: "x"}
	suite.Require().NoError(suite.db.Create(&loner).Error)

	_, err := suite.service.Current(suite.ctx, loner.Identity())
	suite.ErrorIs(err, apperr.ErrNotFound)

	join(suite.T(), suite.db, *suite.owner.WorkspaceID, &loner)
	ws, err := suite.service.Current(suite.ctx, loner.Identity())
	suite.Require().NoError(err)
	suite.Equal(*suite.owner.WorkspaceID, ws.ID)
	suite.False(ws.IsOwner)
	suite.Len(ws.Members, 2)
}

func TestWorkspaceServiceTestSuite(t *testing.T) {
	suite.Run(t, new(WorkspaceServiceTestSuite))
}
