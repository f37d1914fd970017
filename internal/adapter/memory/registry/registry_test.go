package registry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memregistry "github.com/agentprovision/orchestrator/internal/adapter/memory/registry"
	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
)

func register(t *testing.T, r *memregistry.Registry, tenantID uuid.UUID, agentType string, maxConcurrent int) domainagent.Agent {
	t.Helper()
	a, err := r.Register(context.Background(), domainagent.New(tenantID, "worker", agentType, maxConcurrent))
	require.NoError(t, err)
	return a
}

func TestReserveAndReleaseSlot(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	a := register(t, r, uuid.New(), "coder", 2)

	ok, err := r.ReserveSlot(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentTasks)
	assert.Equal(t, domainagent.StateRunning, got.State)

	ok, err = r.ReserveSlot(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Third reservation exceeds capacity.
	ok, err = r.ReserveSlot(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.ReleaseSlot(ctx, a.ID))
	require.NoError(t, r.ReleaseSlot(ctx, a.ID))

	got, err = r.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentTasks)
	assert.Equal(t, domainagent.StateIdle, got.State)

	// Release on an idle agent clamps at zero.
	require.NoError(t, r.ReleaseSlot(ctx, a.ID))
	got, err = r.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentTasks)
}

func TestReserveSlotConcurrent(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	const capacity = 5
	a := register(t, r, uuid.New(), "coder", capacity)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.ReserveSlot(ctx, a.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, granted)
	got, err := r.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, got.CurrentTasks)
}

func TestReserveSlotUnavailableAgent(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	a := register(t, r, uuid.New(), "coder", 2)

	require.NoError(t, r.SetState(ctx, a.ID, domainagent.StatePaused))
	ok, err := r.ReserveSlot(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.SetState(ctx, a.ID, domainagent.StateIdle))
	require.NoError(t, r.SetHealthy(ctx, a.ID, false))
	ok, err = r.ReserveSlot(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = r.ReserveSlot(ctx, uuid.New())
	assert.ErrorIs(t, err, portregistry.ErrNotFound)
}

func TestDeregisterBusy(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	a := register(t, r, uuid.New(), "coder", 1)

	ok, err := r.ReserveSlot(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)

	err = r.Deregister(ctx, a.ID)
	assert.ErrorIs(t, err, portregistry.ErrAgentBusy)

	require.NoError(t, r.ReleaseSlot(ctx, a.ID))
	require.NoError(t, r.Deregister(ctx, a.ID))

	_, err = r.Get(ctx, a.ID)
	assert.ErrorIs(t, err, portregistry.ErrNotFound)
}

func TestSetCapacity(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	a := register(t, r, uuid.New(), "coder", 3)

	ok, err := r.ReserveSlot(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = r.ReserveSlot(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// Cannot shrink below in-flight load.
	err = r.SetCapacity(ctx, a.ID, 1)
	assert.ErrorIs(t, err, portregistry.ErrInvalidCapacity)

	err = r.SetCapacity(ctx, a.ID, 0)
	assert.ErrorIs(t, err, portregistry.ErrInvalidCapacity)

	require.NoError(t, r.SetCapacity(ctx, a.ID, 2))
	got, err := r.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxConcurrentTasks)
}

func TestCandidatesOrdering(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	tenantID := uuid.New()

	busy := register(t, r, tenantID, "coder", 2)
	idle := register(t, r, tenantID, "coder", 2)
	register(t, r, tenantID, "reviewer", 2)
	register(t, r, uuid.New(), "coder", 2)

	ok, err := r.ReserveSlot(ctx, busy.ID)
	require.NoError(t, err)
	require.True(t, ok)

	candidates, err := r.Candidates(ctx, tenantID, "coder")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, idle.ID, candidates[0].ID)
	assert.Equal(t, busy.ID, candidates[1].ID)
}

func TestCandidatesExcludesUnavailable(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	tenantID := uuid.New()

	full := register(t, r, tenantID, "coder", 1)
	paused := register(t, r, tenantID, "coder", 1)
	sick := register(t, r, tenantID, "coder", 1)

	ok, err := r.ReserveSlot(ctx, full.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, r.SetState(ctx, paused.ID, domainagent.StatePaused))
	require.NoError(t, r.SetHealthy(ctx, sick.ID, false))

	candidates, err := r.Candidates(ctx, tenantID, "coder")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestRecordOutcome(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	a := register(t, r, uuid.New(), "coder", 2)

	require.NoError(t, r.RecordOutcome(ctx, a.ID, true, 1000))
	require.NoError(t, r.RecordOutcome(ctx, a.ID, false, 3000))

	got, err := r.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CompletedTasks)
	assert.InDelta(t, 0.5, got.SuccessRate, 1e-9)
	assert.Equal(t, 2*time.Second, got.AvgTaskDuration)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	tenantID := uuid.New()

	coder := register(t, r, tenantID, "coder", 2)
	reviewer := register(t, r, tenantID, "reviewer", 2)
	require.NoError(t, r.SetHealthy(ctx, reviewer.ID, false))

	all, err := r.List(ctx, domainagent.ListFilters{TenantID: &tenantID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	typ := "coder"
	coders, err := r.List(ctx, domainagent.ListFilters{TenantID: &tenantID, Type: &typ})
	require.NoError(t, err)
	require.Len(t, coders, 1)
	assert.Equal(t, coder.ID, coders[0].ID)

	healthy := true
	up, err := r.List(ctx, domainagent.ListFilters{TenantID: &tenantID, Healthy: &healthy})
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, coder.ID, up[0].ID)
}

func TestUpdateHealth(t *testing.T) {
	ctx := context.Background()
	r := memregistry.New()
	a := register(t, r, uuid.New(), "coder", 2)

	reported := time.Now().UTC().Add(-time.Second)
	got, err := r.UpdateHealth(ctx, a.ID, domainagent.HealthSample{
		CPUUsage:    0.42,
		MemoryUsage: 1 << 20,
		ReportedAt:  reported,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.42, got.CPUUsage)
	assert.Equal(t, int64(1<<20), got.MemoryUsage)
	assert.Equal(t, reported, got.LastHealthCheck)
}
