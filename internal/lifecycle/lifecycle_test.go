package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamtasks/backend/internal/apperr"
)

func TestPresent(t *testing.T) {
	tests := []struct {
		status     Status
		hasProject bool
		want       Presented
	}{
		{StatusActive, true, PresentedNotStarted},
		{StatusActive, false, PresentedActive},
		{StatusInProgress, true, PresentedInProgress},
		{StatusInProgress, false, PresentedInProgress},
		{StatusCompleted, true, PresentedFinished},
		{StatusCompleted, false, PresentedCompleted},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Present(tt.status, tt.hasProject), "%s project=%t", tt.status, tt.hasProject)
	}
}

func TestPersist(t *testing.T) {
	tests := map[string]Status{
		"FINISHED":    StatusCompleted,
		"COMPLETED":   StatusCompleted,
		"NOT_STARTED": StatusActive,
		"ACTIVE":      StatusActive,
		"IN_PROGRESS": StatusInProgress,
		"in_progress": StatusInProgress,
	}
	for in, want := range tests {
		got, err := Persist(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Persist("ARCHIVED")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestFinishedRoundTrip(t *testing.T) {
	stored, err := Persist(string(PresentedFinished))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored)
	assert.Equal(t, PresentedFinished, Present(stored, true))
}

func TestBoardOnly(t *testing.T) {
	assert.True(t, BoardOnly("NOT_STARTED"))
	assert.True(t, BoardOnly("finished"))
	assert.False(t, BoardOnly("ACTIVE"))
	assert.False(t, BoardOnly("COMPLETED"))
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, StatusActive, InitialStatus(true))
	assert.Equal(t, StatusActive, InitialStatus(false))
	assert.Equal(t, PresentedNotStarted, Present(InitialStatus(true), true))
	assert.Equal(t, PresentedActive, Present(InitialStatus(false), false))
}

func TestTransition(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	t.Run("entering completed stamps now", func(t *testing.T) {
		next := Transition(State{Status: StatusInProgress}, StatusCompleted, t0)
		require.NotNil(t, next.CompletedAt)
		assert.True(t, next.CompletedAt.Equal(t0))
		assert.NoError(t, Check(next))
	})

	t.Run("completing twice keeps the first stamp", func(t *testing.T) {
		first := Transition(State{Status: StatusActive}, StatusCompleted, t0)
		second := Transition(first, StatusCompleted, t1)
		require.NotNil(t, second.CompletedAt)
		assert.True(t, second.CompletedAt.Equal(t0))
	})

	t.Run("leaving completed clears the stamp", func(t *testing.T) {
		done := Transition(State{Status: StatusInProgress}, StatusCompleted, t0)
		back := Transition(done, StatusActive, t1)
		assert.Equal(t, StatusActive, back.Status)
		assert.Nil(t, back.CompletedAt)
		assert.NoError(t, Check(back))
	})

	t.Run("repairs a completed row missing its stamp", func(t *testing.T) {
		next := Transition(State{Status: StatusCompleted}, StatusCompleted, t1)
		require.NotNil(t, next.CompletedAt)
		assert.True(t, next.CompletedAt.Equal(t1))
	})
}

func TestCheck(t *testing.T) {
	now := time.Now()
	assert.NoError(t, Check(State{Status: StatusActive}))
	assert.NoError(t, Check(State{Status: StatusCompleted, CompletedAt: &now}))
	assert.Error(t, Check(State{Status: StatusCompleted}))
	assert.Error(t, Check(State{Status: StatusInProgress, CompletedAt: &now}))
}
