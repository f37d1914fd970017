package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	"github.com/agentprovision/orchestrator/internal/domain/event"
	porteventbus "github.com/agentprovision/orchestrator/internal/port/eventbus"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
)

// Service tracks agent liveness. Agents report heartbeats with resource
// samples; a periodic sweep demotes agents whose last heartbeat is older than
// the timeout. Demotion excludes an agent from scheduling but never touches
// its in-flight tasks.
type Service struct {
	registry portregistry.Registry
	bus      porteventbus.Bus

	heartbeatTimeout time.Duration
	checkInterval    time.Duration
}

func NewService(registry portregistry.Registry, bus porteventbus.Bus, heartbeatTimeout, checkInterval time.Duration) *Service {
	return &Service{
		registry:         registry,
		bus:              bus,
		heartbeatTimeout: heartbeatTimeout,
		checkInterval:    checkInterval,
	}
}

// ReportHeartbeat records one liveness report from an agent process. A clean
// report from an unhealthy agent promotes it back to Healthy, which unblocks
// scheduling; a report carrying an error demotes it.
func (s *Service) ReportHeartbeat(ctx context.Context, id uuid.UUID, sample domainagent.HealthSample) error {
	a, err := s.registry.UpdateHealth(ctx, id, sample)
	if err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}

	if sample.Error != "" {
		if err := s.demote(ctx, a, "error reported: "+sample.Error); err != nil {
			return err
		}
		if err := s.registry.SetState(ctx, id, domainagent.StateError); err != nil {
			return fmt.Errorf("mark agent errored: %w", err)
		}
		return nil
	}

	if !a.Healthy {
		return s.promote(ctx, a)
	}

	s.bus.Publish(ctx, event.New(event.TypeAgentHeartbeat, id, a.TenantID)) //nolint:errcheck
	return nil
}

// Run sweeps all agents on a fixed interval, demoting any whose heartbeat has
// gone stale. Blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	agents, err := s.registry.List(ctx, domainagent.ListFilters{})
	if err != nil {
		slog.ErrorContext(ctx, "health sweep: list agents", "error", err)
		return
	}

	for _, a := range agents {
		if a.Healthy && a.Stale(s.heartbeatTimeout) {
			if err := s.demote(ctx, a, "heartbeat timeout"); err != nil {
				slog.ErrorContext(ctx, "health sweep: demote agent", "agent_id", a.ID, "error", err)
			}
			continue
		}
		// Observation only — capacity planning stays with the operator.
		if a.Healthy && a.Utilization() >= 0.8 {
			slog.InfoContext(ctx, "agent running at high capacity",
				"agent_id", a.ID, "current_tasks", a.CurrentTasks, "max_concurrent_tasks", a.MaxConcurrentTasks)
		}
	}
}

func (s *Service) demote(ctx context.Context, a domainagent.Agent, reason string) error {
	if err := s.registry.SetHealthy(ctx, a.ID, false); err != nil {
		return fmt.Errorf("mark agent unhealthy: %w", err)
	}
	slog.InfoContext(ctx, "agent unhealthy", "agent_id", a.ID, "reason", reason)
	if err := s.bus.Publish(ctx, event.New(event.TypeAgentUnhealthy, a.ID, a.TenantID)); err != nil {
		slog.ErrorContext(ctx, "failed to publish AgentUnhealthy event", "agent_id", a.ID, "error", err)
	}
	return nil
}

func (s *Service) promote(ctx context.Context, a domainagent.Agent) error {
	if err := s.registry.SetHealthy(ctx, a.ID, true); err != nil {
		return fmt.Errorf("mark agent healthy: %w", err)
	}
	// An errored agent comes back through idle/running, not straight to error.
	if a.State == domainagent.StateError {
		state := domainagent.StateIdle
		if a.CurrentTasks > 0 {
			state = domainagent.StateRunning
		}
		if err := s.registry.SetState(ctx, a.ID, state); err != nil {
			return fmt.Errorf("restore agent state: %w", err)
		}
	}
	slog.InfoContext(ctx, "agent healthy again", "agent_id", a.ID)
	// AgentHealthy triggers a scheduling pass — recovered capacity may
	// unblock queued work.
	if err := s.bus.Publish(ctx, event.New(event.TypeAgentHealthy, a.ID, a.TenantID)); err != nil {
		slog.ErrorContext(ctx, "failed to publish AgentHealthy event", "agent_id", a.ID, "error", err)
	}
	return nil
}
