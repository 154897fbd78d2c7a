package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/apperr"
	"teamtasks/backend/internal/cache"
	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/services"
)

type AccessServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	service services.AccessService

	owner    *models.User
	member   *models.User
	outsider *models.User
	project  models.Project
	task     models.Task
}

func (suite *AccessServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = newTestDB(suite.T())
	suite.service = services.NewAccessService(suite.db)

	suite.owner = register(suite.T(), suite.db, "Olivia Owner")
	suite.member = register(suite.T(), suite.db, "Max Member")
	suite.outsider = register(suite.T(), suite.db, "Oscar Outsider")
	join(suite.T(), suite.db, *suite.owner.WorkspaceID, suite.member)

	suite.project = models.Project{WorkspaceID: *suite.owner.WorkspaceID, UserID: suite.member.ID, Name: "Launch"}
	suite.Require().NoError(suite.db.Create(&suite.project).Error)
	suite.task = models.Task{WorkspaceID: *suite.owner.WorkspaceID, UserID: suite.member.ID, ProjectID: &suite.project.ID, Title: "Design"}
	suite.Require().NoError(suite.db.Create(&suite.task).Error)
}

func (suite *AccessServiceTestSuite) TestAccessibleWorkspaceIDs() {
	ownerIDs, err := suite.service.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.owner))
	suite.Require().NoError(err)
	suite.Equal([]uuid.UUID{*suite.owner.WorkspaceID}, ownerIDs)

	memberIDs, err := suite.service.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.member))
	suite.Require().NoError(err)
	suite.ElementsMatch([]uuid.UUID{*suite.owner.WorkspaceID, *suite.member.WorkspaceID}, memberIDs)

	outsiderIDs, err := suite.service.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.outsider))
	suite.Require().NoError(err)
	suite.NotContains(outsiderIDs, *suite.owner.WorkspaceID)

	_, err = suite.service.AccessibleWorkspaceIDs(suite.ctx, access.Identity{})
	suite.ErrorIs(err, apperr.ErrUnauthenticated)
}

func (suite *AccessServiceTestSuite) TestWorkspaceRelation() {
	_, rel, err := suite.service.WorkspaceRelation(suite.ctx, idOf(suite.owner), *suite.owner.WorkspaceID)
	suite.Require().NoError(err)
	suite.True(rel.WorkspaceOwner)

	_, rel, err = suite.service.WorkspaceRelation(suite.ctx, idOf(suite.member), *suite.owner.WorkspaceID)
	suite.Require().NoError(err)
	suite.False(rel.WorkspaceOwner)
	suite.True(rel.WorkspaceMember)

	_, _, err = suite.service.WorkspaceRelation(suite.ctx, idOf(suite.outsider), *suite.owner.WorkspaceID)
	suite.ErrorIs(err, apperr.ErrNotFound)

	_, _, err = suite.service.WorkspaceRelation(suite.ctx, idOf(suite.owner), uuid.Must(uuid.NewV4()))
	suite.ErrorIs(err, apperr.ErrNotFound)
}

func (suite *AccessServiceTestSuite) TestProjectAndTaskRelations() {
	_, rel, err := suite.service.ProjectRelation(suite.ctx, idOf(suite.member), suite.project.ID)
	suite.Require().NoError(err)
	suite.True(rel.ResourceOwner)
	suite.True(access.CanEditProject(rel))

	_, rel, err = suite.service.ProjectRelation(suite.ctx, idOf(suite.owner), suite.project.ID)
	suite.Require().NoError(err)
	suite.True(rel.WorkspaceOwner)
	suite.False(access.CanEditProject(rel))

	_, _, err = suite.service.ProjectRelation(suite.ctx, idOf(suite.outsider), suite.project.ID)
	suite.ErrorIs(err, apperr.ErrNotFound)

	_, rel, err = suite.service.TaskRelation(suite.ctx, idOf(suite.owner), suite.task.ID)
	suite.Require().NoError(err)
	suite.True(access.CanDeleteTask(rel))

	_, _, err = suite.service.TaskRelation(suite.ctx, idOf(suite.outsider), suite.task.ID)
	suite.ErrorIs(err, apperr.ErrNotFound)

	suite.Require().NoError(suite.db.Create(&models.ProjectMember{ProjectID: suite.project.ID, UserID: suite.outsider.ID}).Error)
	_, rel, err = suite.service.TaskRelation(suite.ctx, idOf(suite.outsider), suite.task.ID)
	suite.Require().NoError(err)
	suite.True(rel.ProjectMember)
	suite.False(access.CanAccess(rel))
}

func (suite *AccessServiceTestSuite) TestCachedWorkspaceSet() {
	c := cache.NewMemoryCache()
	cached := services.NewCachedAccessService(suite.service, c, time.Minute)

	first, err := cached.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.outsider))
	suite.Require().NoError(err)
	suite.Len(first, 1)

	// Joining without invalidation is invisible until the entry is dropped.
	join(suite.T(), suite.db, *suite.owner.WorkspaceID, suite.outsider)
	stale, err := cached.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.outsider))
	suite.Require().NoError(err)
	suite.Len(stale, 1)

	cached.InvalidateUser(suite.ctx, suite.outsider.ID)
	fresh, err := cached.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.outsider))
	suite.Require().NoError(err)
	suite.Len(fresh, 2)

	again, err := cached.AccessibleWorkspaceIDs(suite.ctx, idOf(suite.outsider))
	suite.Require().NoError(err)
	suite.Len(again, 2)
}

// slowAccess hands out a fixed sequence of workspace sets and runs during
// the first lookup, after the set has been read.
type slowAccess struct {
	services.AccessService
	sets   [][]uuid.UUID
	calls  int
	during func()
}

func (a *slowAccess) AccessibleWorkspaceIDs(ctx context.Context, id access.Identity) ([]uuid.UUID, error) {
	set := a.sets[a.calls]
	a.calls++
	if a.during != nil {
		during := a.during
		a.during = nil
		during()
	}
	return set, nil
}

func (suite *AccessServiceTestSuite) TestCachedWorkspaceSetIgnoresLookupOverlappingInvalidation() {
	kept, removed := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	inner := &slowAccess{sets: [][]uuid.UUID{{kept, removed}, {kept}}}
	cached := services.NewCachedAccessService(inner, cache.NewMemoryCache(), time.Minute)
	caller := access.Identity{UserID: uuid.Must(uuid.NewV4()), Role: access.RoleUser}
	inner.during = func() { cached.InvalidateUser(suite.ctx, caller.UserID) }

	first, err := cached.AccessibleWorkspaceIDs(suite.ctx, caller)
	suite.Require().NoError(err)
	suite.Len(first, 2)

	fresh, err := cached.AccessibleWorkspaceIDs(suite.ctx, caller)
	suite.Require().NoError(err)
	suite.Equal([]uuid.UUID{kept}, fresh)
	suite.Equal(2, inner.calls)

	cachedAgain, err := cached.AccessibleWorkspaceIDs(suite.ctx, caller)
	suite.Require().NoError(err)
	suite.Equal([]uuid.UUID{kept}, cachedAgain)
	suite.Equal(2, inner.calls)
}

func TestAccessServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AccessServiceTestSuite))
}
