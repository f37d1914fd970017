package agent_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	"github.com/agentprovision/orchestrator/internal/domain/event"
	"github.com/agentprovision/orchestrator/internal/mocks"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
	agentsvc "github.com/agentprovision/orchestrator/internal/service/agent"
)

func newAgentSvc(t *testing.T) (*agentsvc.Service, *mocks.MockRegistry, *mocks.MockBus) {
	t.Helper()
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockRegistry(ctrl)
	bus := mocks.NewMockBus(ctrl)
	return agentsvc.NewService(registry, bus), registry, bus
}

func matchEventType(et event.Type) gomock.Matcher {
	return eventTypeMatcher{et}
}

type eventTypeMatcher struct{ want event.Type }

func (m eventTypeMatcher) Matches(x interface{}) bool {
	e, ok := x.(event.Event)
	return ok && e.Type == m.want
}
func (m eventTypeMatcher) String() string { return "event.Type=" + string(m.want) }

func TestRegister(t *testing.T) {
	t.Run("success creates idle healthy agent", func(t *testing.T) {
		svc, registry, bus := newAgentSvc(t)
		tenantID := uuid.New()

		registry.EXPECT().Register(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, a domainagent.Agent) (domainagent.Agent, error) {
				return a, nil
			})
		bus.EXPECT().Publish(gomock.Any(), matchEventType(event.TypeAgentRegistered)).Return(nil)

		got, err := svc.Register(context.Background(), tenantID, "worker-1", "coder", 3)
		require.NoError(t, err)
		assert.Equal(t, domainagent.StateIdle, got.State)
		assert.True(t, got.Healthy)
		assert.Equal(t, 3, got.MaxConcurrentTasks)
	})

	t.Run("zero capacity is refused", func(t *testing.T) {
		svc, _, _ := newAgentSvc(t)

		_, err := svc.Register(context.Background(), uuid.New(), "worker-1", "coder", 0)
		assert.ErrorIs(t, err, portregistry.ErrInvalidCapacity)
	})
}

func TestDeregister(t *testing.T) {
	t.Run("success publishes deregistered", func(t *testing.T) {
		svc, registry, bus := newAgentSvc(t)
		a := domainagent.New(uuid.New(), "worker-1", "coder", 2)

		registry.EXPECT().Get(gomock.Any(), a.ID).Return(a, nil)
		registry.EXPECT().Deregister(gomock.Any(), a.ID).Return(nil)
		bus.EXPECT().Publish(gomock.Any(), matchEventType(event.TypeAgentDeregistered)).Return(nil)

		require.NoError(t, svc.Deregister(context.Background(), a.ID))
	})

	t.Run("busy agent is refused", func(t *testing.T) {
		svc, registry, _ := newAgentSvc(t)
		a := domainagent.New(uuid.New(), "worker-1", "coder", 2)
		a.CurrentTasks = 1

		registry.EXPECT().Get(gomock.Any(), a.ID).Return(a, nil)
		registry.EXPECT().Deregister(gomock.Any(), a.ID).Return(portregistry.ErrAgentBusy)

		err := svc.Deregister(context.Background(), a.ID)
		assert.ErrorIs(t, err, portregistry.ErrAgentBusy)
	})

	t.Run("unknown agent", func(t *testing.T) {
		svc, registry, _ := newAgentSvc(t)
		id := uuid.New()

		registry.EXPECT().Get(gomock.Any(), id).Return(domainagent.Agent{}, portregistry.ErrNotFound)

		err := svc.Deregister(context.Background(), id)
		assert.ErrorIs(t, err, portregistry.ErrNotFound)
	})
}
