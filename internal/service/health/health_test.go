package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memeventbus "github.com/agentprovision/orchestrator/internal/adapter/memory/eventbus"
	memregistry "github.com/agentprovision/orchestrator/internal/adapter/memory/registry"
	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	"github.com/agentprovision/orchestrator/internal/domain/event"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
	healthsvc "github.com/agentprovision/orchestrator/internal/service/health"
)

func newHealthSvc(t *testing.T) (*healthsvc.Service, *memregistry.Registry, *[]event.Event) {
	t.Helper()
	registry := memregistry.New()
	bus := memeventbus.New()
	events := &[]event.Event{}
	_, err := bus.Subscribe(context.Background(), event.ChannelAgent, func(_ context.Context, e event.Event) {
		*events = append(*events, e)
	})
	require.NoError(t, err)
	return healthsvc.NewService(registry, bus, 45*time.Second, 10*time.Second), registry, events
}

func addAgent(t *testing.T, r *memregistry.Registry) domainagent.Agent {
	t.Helper()
	a, err := r.Register(context.Background(), domainagent.New(uuid.New(), "worker", "coder", 2))
	require.NoError(t, err)
	return a
}

func hasEvent(events *[]event.Event, et event.Type) bool {
	for _, e := range *events {
		if e.Type == et {
			return true
		}
	}
	return false
}

func TestReportHeartbeat(t *testing.T) {
	ctx := context.Background()

	t.Run("clean report updates resources", func(t *testing.T) {
		svc, registry, events := newHealthSvc(t)
		a := addAgent(t, registry)

		err := svc.ReportHeartbeat(ctx, a.ID, domainagent.HealthSample{CPUUsage: 0.3, MemoryUsage: 512})
		require.NoError(t, err)

		got, err := registry.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.Healthy)
		assert.Equal(t, 0.3, got.CPUUsage)
		assert.True(t, hasEvent(events, event.TypeAgentHeartbeat))
	})

	t.Run("error report demotes to error state", func(t *testing.T) {
		svc, registry, events := newHealthSvc(t)
		a := addAgent(t, registry)

		err := svc.ReportHeartbeat(ctx, a.ID, domainagent.HealthSample{Error: "disk full"})
		require.NoError(t, err)

		got, err := registry.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, got.Healthy)
		assert.Equal(t, domainagent.StateError, got.State)
		assert.True(t, hasEvent(events, event.TypeAgentUnhealthy))
	})

	t.Run("clean report promotes unhealthy agent", func(t *testing.T) {
		svc, registry, events := newHealthSvc(t)
		a := addAgent(t, registry)
		require.NoError(t, svc.ReportHeartbeat(ctx, a.ID, domainagent.HealthSample{Error: "disk full"}))

		err := svc.ReportHeartbeat(ctx, a.ID, domainagent.HealthSample{CPUUsage: 0.1})
		require.NoError(t, err)

		got, err := registry.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, got.Healthy)
		assert.Equal(t, domainagent.StateIdle, got.State)
		assert.True(t, hasEvent(events, event.TypeAgentHealthy))
	})

	t.Run("recovered agent with in-flight work returns to running", func(t *testing.T) {
		svc, registry, _ := newHealthSvc(t)
		a := addAgent(t, registry)
		ok, err := registry.ReserveSlot(ctx, a.ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, svc.ReportHeartbeat(ctx, a.ID, domainagent.HealthSample{Error: "wedged"}))

		require.NoError(t, svc.ReportHeartbeat(ctx, a.ID, domainagent.HealthSample{}))

		got, err := registry.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, domainagent.StateRunning, got.State)
	})

	t.Run("unknown agent", func(t *testing.T) {
		svc, _, _ := newHealthSvc(t)
		err := svc.ReportHeartbeat(ctx, uuid.New(), domainagent.HealthSample{})
		assert.ErrorIs(t, err, portregistry.ErrNotFound)
	})
}

func TestSweepDemotesStaleAgents(t *testing.T) {
	ctx := context.Background()
	registry := memregistry.New()
	bus := memeventbus.New()
	events := &[]event.Event{}
	_, err := bus.Subscribe(ctx, event.ChannelAgent, func(_ context.Context, e event.Event) {
		*events = append(*events, e)
	})
	require.NoError(t, err)

	// Tight timeout so the fixture agent is already stale.
	svc := healthsvc.NewService(registry, bus, time.Millisecond, time.Millisecond)

	stale := addAgent(t, registry)
	fresh := addAgent(t, registry)
	time.Sleep(5 * time.Millisecond)
	_, err = registry.UpdateHealth(ctx, fresh.ID, domainagent.HealthSample{ReportedAt: time.Now().UTC().Add(time.Hour)})
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	svc.Run(runCtx)

	got, err := registry.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.False(t, got.Healthy)

	still, err := registry.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, still.Healthy)

	assert.True(t, hasEvent(events, event.TypeAgentUnhealthy))
}
