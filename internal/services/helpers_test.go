package services_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"teamtasks/backend/internal/access"
	"teamtasks/backend/internal/database"
	"teamtasks/backend/internal/models"
	"teamtasks/backend/internal/services"
	"teamtasks/backend/internal/worker"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestDB opens a private in-memory database. One connection keeps every
// statement on the same database.
func newTestDB(t testing.TB) *gorm.DB {
	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(pool.DB))
	t.Cleanup(func() { _ = pool.Close() })
	return pool.DB
}

func register(t testing.TB, db *gorm.DB, name string) *models.User {
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
	user, err := services.NewRegisterService(db, bcrypt.MinCost).RegisterUser(context.Background(), services.RegistrationRequest{
		Email:    email,
		Name:     name,
		Password: "password123",
	})
	require.NoError(t, err)
	return user
}

func join(t testing.TB, db *gorm.DB, workspaceID uuid.UUID, user *models.User) {
	require.NoError(t, db.Create(&models.WorkspaceMember{WorkspaceID: workspaceID, UserID: user.ID}).Error)
}

func idOf(u *models.User) access.Identity {
	return u.Identity()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type scheduledJob struct {
	queue   string
	jobType worker.JobType
	payload map[string]interface{}
	at      time.Time
}

type recordingScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

func (r *recordingScheduler) EnqueueAt(_ context.Context, queue string, jobType worker.JobType, payload map[string]interface{}, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, scheduledJob{queue: queue, jobType: jobType, payload: payload, at: at})
	return nil
}

func (r *recordingScheduler) Jobs() []scheduledJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scheduledJob(nil), r.jobs...)
}

func ptr[T any](v T) *T {
	return &v
}
