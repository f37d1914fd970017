package taskstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memtaskstore "github.com/agentprovision/orchestrator/internal/adapter/memory/taskstore"
	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	porttaskstore "github.com/agentprovision/orchestrator/internal/port/taskstore"
)

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memtaskstore.New()
	agentID := uuid.New()

	created, err := s.Create(ctx, domaintask.New(uuid.New(), "coder", "p", domaintask.PriorityNormal))
	require.NoError(t, err)

	assigned, err := s.MarkAssigned(ctx, created.ID, agentID)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AssignedAgentID)
	assert.Equal(t, agentID, *assigned.AssignedAgentID)

	running, err := s.MarkRunning(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusRunning, running.Status)
	assert.NotNil(t, running.StartedAt)

	terminal, err := s.MarkTerminal(ctx, created.ID, domaintask.StatusCompleted, "", 1500)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusCompleted, terminal.Status)
	assert.Equal(t, int64(1500), terminal.DurationMs)
	assert.NotNil(t, terminal.CompletedAt)
	assert.Nil(t, terminal.AssignedAgentID)
}

func TestMarkTerminalFailure(t *testing.T) {
	ctx := context.Background()
	s := memtaskstore.New()

	created, err := s.Create(ctx, domaintask.New(uuid.New(), "coder", "p", domaintask.PriorityNormal))
	require.NoError(t, err)
	_, err = s.MarkAssigned(ctx, created.ID, uuid.New())
	require.NoError(t, err)

	terminal, err := s.MarkTerminal(ctx, created.ID, domaintask.StatusFailed, "out of memory", 200)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusFailed, terminal.Status)
	assert.Equal(t, "out of memory", terminal.Error)
}

func TestRequeue(t *testing.T) {
	ctx := context.Background()
	s := memtaskstore.New()

	created, err := s.Create(ctx, domaintask.New(uuid.New(), "coder", "p", domaintask.PriorityNormal))
	require.NoError(t, err)
	_, err = s.MarkAssigned(ctx, created.ID, uuid.New())
	require.NoError(t, err)

	requeued, err := s.Requeue(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusQueued, requeued.Status)
	assert.Nil(t, requeued.AssignedAgentID)
}

func TestMarkGuardsTransitions(t *testing.T) {
	ctx := context.Background()
	s := memtaskstore.New()

	created, err := s.Create(ctx, domaintask.New(uuid.New(), "coder", "p", domaintask.PriorityNormal))
	require.NoError(t, err)

	// Running requires Assigned first; Requeue requires Assigned.
	_, err = s.MarkRunning(ctx, created.ID)
	assert.ErrorIs(t, err, porttaskstore.ErrInvalidTransition)
	_, err = s.Requeue(ctx, created.ID)
	assert.ErrorIs(t, err, porttaskstore.ErrInvalidTransition)

	cancelled, err := s.MarkTerminal(ctx, created.ID, domaintask.StatusCancelled, "", 0)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusCancelled, cancelled.Status)

	// A terminal task can never be resurrected.
	_, err = s.MarkAssigned(ctx, created.ID, uuid.New())
	assert.ErrorIs(t, err, porttaskstore.ErrInvalidTransition)
	_, err = s.MarkRunning(ctx, created.ID)
	assert.ErrorIs(t, err, porttaskstore.ErrInvalidTransition)
	_, err = s.MarkTerminal(ctx, created.ID, domaintask.StatusCompleted, "", 0)
	assert.ErrorIs(t, err, porttaskstore.ErrInvalidTransition)
	_, err = s.Requeue(ctx, created.ID)
	assert.ErrorIs(t, err, porttaskstore.ErrInvalidTransition)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domaintask.StatusCancelled, got.Status)
	assert.Nil(t, got.AssignedAgentID)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := memtaskstore.New()
	id := uuid.New()

	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, porttaskstore.ErrNotFound)
	_, err = s.MarkAssigned(ctx, id, uuid.New())
	assert.ErrorIs(t, err, porttaskstore.ErrNotFound)
	_, err = s.MarkRunning(ctx, id)
	assert.ErrorIs(t, err, porttaskstore.ErrNotFound)
	_, err = s.MarkTerminal(ctx, id, domaintask.StatusCompleted, "", 0)
	assert.ErrorIs(t, err, porttaskstore.ErrNotFound)
	_, err = s.Requeue(ctx, id)
	assert.ErrorIs(t, err, porttaskstore.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := memtaskstore.New()
	tenantID := uuid.New()
	agentID := uuid.New()

	first, err := s.Create(ctx, domaintask.New(tenantID, "coder", "p1", domaintask.PriorityHigh))
	require.NoError(t, err)
	second, err := s.Create(ctx, domaintask.New(tenantID, "coder", "p2", domaintask.PriorityNormal))
	require.NoError(t, err)
	_, err = s.Create(ctx, domaintask.New(uuid.New(), "coder", "p3", domaintask.PriorityNormal))
	require.NoError(t, err)

	_, err = s.MarkAssigned(ctx, second.ID, agentID)
	require.NoError(t, err)

	all, err := s.List(ctx, domaintask.ListFilters{TenantID: &tenantID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := domaintask.StatusQueued
	queued, err := s.List(ctx, domaintask.ListFilters{TenantID: &tenantID, Status: &status})
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, first.ID, queued[0].ID)

	mine, err := s.List(ctx, domaintask.ListFilters{AssignedTo: &agentID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.ID, mine[0].ID)
}
