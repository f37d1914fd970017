package metrics_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memqueue "github.com/agentprovision/orchestrator/internal/adapter/memory/queue"
	memregistry "github.com/agentprovision/orchestrator/internal/adapter/memory/registry"
	memtaskstore "github.com/agentprovision/orchestrator/internal/adapter/memory/taskstore"
	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	metricssvc "github.com/agentprovision/orchestrator/internal/service/metrics"
)

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	registry := memregistry.New()
	queue := memqueue.New()
	store := memtaskstore.New()
	svc := metricssvc.NewService(registry, queue, store)
	tenantID := uuid.New()

	// Two agents: one with an in-flight task, one sick.
	worker, err := registry.Register(ctx, domainagent.New(tenantID, "w1", "coder", 4))
	require.NoError(t, err)
	sick, err := registry.Register(ctx, domainagent.New(tenantID, "w2", "coder", 2))
	require.NoError(t, err)
	require.NoError(t, registry.SetHealthy(ctx, sick.ID, false))

	ok, err := registry.ReserveSlot(ctx, worker.ID)
	require.NoError(t, err)
	require.True(t, ok)

	assigned, err := store.Create(ctx, domaintask.New(tenantID, "coder", "p1", domaintask.PriorityNormal))
	require.NoError(t, err)
	_, err = store.MarkAssigned(ctx, assigned.ID, worker.ID)
	require.NoError(t, err)

	// Two queued tasks in different bands.
	for _, p := range []domaintask.Priority{domaintask.PriorityCritical, domaintask.PriorityLow} {
		task, err := store.Create(ctx, domaintask.New(tenantID, "coder", "p", p))
		require.NoError(t, err)
		require.NoError(t, queue.Enqueue(ctx, task))
	}

	// Terminal tasks never count as running.
	done, err := store.Create(ctx, domaintask.New(tenantID, "coder", "p", domaintask.PriorityNormal))
	require.NoError(t, err)
	_, err = store.MarkTerminal(ctx, done.ID, domaintask.StatusCompleted, "", 100)
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, tenantID)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Agents.Total)
	assert.Equal(t, 1, snap.Agents.Active)
	assert.Equal(t, 1, snap.Agents.Healthy)
	// 1 of 6 total slots in use.
	assert.InDelta(t, 16.67, snap.Agents.UtilizationPercent, 0.001)

	assert.Equal(t, 6, snap.Capacity.MaxTasks)
	assert.Equal(t, 1, snap.Capacity.CurrentTasks)
	assert.Equal(t, 5, snap.Capacity.AvailableCapacity)

	assert.Equal(t, 2, snap.Tasks.Queued)
	assert.Equal(t, 1, snap.Tasks.Running)
	assert.Equal(t, 1, snap.Tasks.QueueBreakdown[domaintask.PriorityCritical])
	assert.Equal(t, 1, snap.Tasks.QueueBreakdown[domaintask.PriorityLow])
	assert.Equal(t, 0, snap.Tasks.QueueBreakdown[domaintask.PriorityHigh])
}

func TestSnapshotEmptyTenant(t *testing.T) {
	ctx := context.Background()
	svc := metricssvc.NewService(memregistry.New(), memqueue.New(), memtaskstore.New())

	snap, err := svc.Snapshot(ctx, uuid.New())
	require.NoError(t, err)

	assert.Zero(t, snap.Agents.Total)
	// No agents means no division: utilization stays zero, not NaN.
	assert.Zero(t, snap.Agents.UtilizationPercent)
	assert.Zero(t, snap.Capacity.AvailableCapacity)
	assert.Zero(t, snap.Tasks.Queued)
	assert.Len(t, snap.Tasks.QueueBreakdown, 4)
}
