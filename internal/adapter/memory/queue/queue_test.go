package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memqueue "github.com/agentprovision/orchestrator/internal/adapter/memory/queue"
	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	portqueue "github.com/agentprovision/orchestrator/internal/port/queue"
)

func taskAt(tenantID uuid.UUID, priority domaintask.Priority, createdAt time.Time) domaintask.Task {
	t := domaintask.New(tenantID, "coder", "payload", priority)
	t.CreatedAt = createdAt
	return t
}

func TestQueuedOrdering(t *testing.T) {
	ctx := context.Background()
	q := memqueue.New()
	tenantID := uuid.New()
	base := time.Now().UTC()

	lowFirst := taskAt(tenantID, domaintask.PriorityLow, base)
	normal := taskAt(tenantID, domaintask.PriorityNormal, base.Add(time.Second))
	critical := taskAt(tenantID, domaintask.PriorityCritical, base.Add(2*time.Second))
	highOld := taskAt(tenantID, domaintask.PriorityHigh, base.Add(3*time.Second))
	highNew := taskAt(tenantID, domaintask.PriorityHigh, base.Add(4*time.Second))

	// Enqueue out of order; scheduling order must not depend on arrival order.
	for _, task := range []domaintask.Task{lowFirst, highNew, normal, critical, highOld} {
		require.NoError(t, q.Enqueue(ctx, task))
	}

	queued, err := q.Queued(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, queued, 5)

	got := make([]uuid.UUID, 0, len(queued))
	for _, task := range queued {
		got = append(got, task.ID)
	}
	assert.Equal(t, []uuid.UUID{critical.ID, highOld.ID, highNew.ID, normal.ID, lowFirst.ID}, got)
}

func TestFIFOTieBreak(t *testing.T) {
	ctx := context.Background()
	q := memqueue.New()
	tenantID := uuid.New()
	at := time.Now().UTC()

	// Same band, same timestamp: order falls back to task id.
	a := taskAt(tenantID, domaintask.PriorityNormal, at)
	b := taskAt(tenantID, domaintask.PriorityNormal, at)
	require.NoError(t, q.Enqueue(ctx, a))
	require.NoError(t, q.Enqueue(ctx, b))

	queued, err := q.Queued(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.True(t, queued[0].ID.String() < queued[1].ID.String())
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	q := memqueue.New()
	tenantA, tenantB := uuid.New(), uuid.New()

	require.NoError(t, q.Enqueue(ctx, domaintask.New(tenantA, "coder", "p", domaintask.PriorityNormal)))

	queued, err := q.Queued(ctx, tenantB)
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	q := memqueue.New()
	tenantID := uuid.New()

	task := domaintask.New(tenantID, "coder", "p", domaintask.PriorityHigh)
	require.NoError(t, q.Enqueue(ctx, task))

	require.NoError(t, q.Remove(ctx, tenantID, task.ID))

	queued, err := q.Queued(ctx, tenantID)
	require.NoError(t, err)
	assert.Empty(t, queued)

	err = q.Remove(ctx, tenantID, task.ID)
	assert.ErrorIs(t, err, portqueue.ErrNotFound)

	err = q.Remove(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, portqueue.ErrNotFound)
}

func TestDepth(t *testing.T) {
	ctx := context.Background()
	q := memqueue.New()
	tenantID := uuid.New()

	require.NoError(t, q.Enqueue(ctx, domaintask.New(tenantID, "coder", "p", domaintask.PriorityCritical)))
	require.NoError(t, q.Enqueue(ctx, domaintask.New(tenantID, "coder", "p", domaintask.PriorityNormal)))
	require.NoError(t, q.Enqueue(ctx, domaintask.New(tenantID, "coder", "p", domaintask.PriorityNormal)))

	depth, err := q.Depth(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, map[domaintask.Priority]int{
		domaintask.PriorityCritical: 1,
		domaintask.PriorityHigh:     0,
		domaintask.PriorityNormal:   2,
		domaintask.PriorityLow:      0,
	}, depth)

	// Unknown tenant still reports all four bands.
	depth, err = q.Depth(ctx, uuid.New())
	require.NoError(t, err)
	assert.Len(t, depth, 4)
	for _, n := range depth {
		assert.Zero(t, n)
	}
}

func TestPosition(t *testing.T) {
	ctx := context.Background()
	q := memqueue.New()
	tenantID := uuid.New()
	base := time.Now().UTC()

	normal := taskAt(tenantID, domaintask.PriorityNormal, base)
	require.NoError(t, q.Enqueue(ctx, normal))

	pos, err := q.Position(ctx, tenantID, normal.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	// A later critical task jumps the line; the normal task's position is
	// recomputed on query, not stored.
	critical := taskAt(tenantID, domaintask.PriorityCritical, base.Add(time.Second))
	require.NoError(t, q.Enqueue(ctx, critical))

	pos, err = q.Position(ctx, tenantID, normal.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = q.Position(ctx, tenantID, critical.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	_, err = q.Position(ctx, tenantID, uuid.New())
	assert.ErrorIs(t, err, portqueue.ErrNotFound)
}
