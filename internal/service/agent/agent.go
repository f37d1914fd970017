package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	"github.com/agentprovision/orchestrator/internal/domain/event"
	porteventbus "github.com/agentprovision/orchestrator/internal/port/eventbus"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
)

// Service manages agent lifecycle: registration, lookup, and removal.
// Pause/resume/rescale live in the control service.
type Service struct {
	registry portregistry.Registry
	bus      porteventbus.Bus
}

func NewService(registry portregistry.Registry, bus porteventbus.Bus) *Service {
	return &Service{registry: registry, bus: bus}
}

func (s *Service) Register(ctx context.Context, tenantID uuid.UUID, name, agentType string, maxConcurrent int) (domainagent.Agent, error) {
	if maxConcurrent < 1 {
		return domainagent.Agent{}, fmt.Errorf("register agent: %w", portregistry.ErrInvalidCapacity)
	}
	a := domainagent.New(tenantID, name, agentType, maxConcurrent)

	created, err := s.registry.Register(ctx, a)
	if err != nil {
		return domainagent.Agent{}, fmt.Errorf("register agent: %w", err)
	}

	if err := s.bus.Publish(ctx, event.New(event.TypeAgentRegistered, created.ID, created.TenantID)); err != nil {
		slog.ErrorContext(ctx, "failed to publish AgentRegistered event", "agent_id", created.ID, "error", err)
	}
	return created, nil
}

// Deregister removes an agent. Refused while the agent still has in-flight
// tasks — callers must drain first.
func (s *Service) Deregister(ctx context.Context, id uuid.UUID) error {
	a, err := s.registry.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("deregister agent: %w", err)
	}
	if err := s.registry.Deregister(ctx, id); err != nil {
		return fmt.Errorf("deregister agent: %w", err)
	}
	if err := s.bus.Publish(ctx, event.New(event.TypeAgentDeregistered, id, a.TenantID)); err != nil {
		slog.ErrorContext(ctx, "failed to publish AgentDeregistered event", "agent_id", id, "error", err)
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domainagent.Agent, error) {
	a, err := s.registry.Get(ctx, id)
	if err != nil {
		return domainagent.Agent{}, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, filters domainagent.ListFilters) ([]domainagent.Agent, error) {
	agents, err := s.registry.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}
