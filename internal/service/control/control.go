package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	"github.com/agentprovision/orchestrator/internal/domain/event"
	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	porteventbus "github.com/agentprovision/orchestrator/internal/port/eventbus"
	portqueue "github.com/agentprovision/orchestrator/internal/port/queue"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
	porttaskstore "github.com/agentprovision/orchestrator/internal/port/taskstore"
)

// PausePolicy decides what happens to Assigned-but-not-yet-Running tasks when
// their agent is paused.
type PausePolicy string

const (
	// PolicyBlockNew only stops new assignment; everything already handed to
	// the agent runs to completion. The conservative default.
	PolicyBlockNew PausePolicy = "block_new"
	// PolicyRequeueAssigned additionally pulls Assigned (not Running) tasks
	// back into the queue and releases their slots.
	PolicyRequeueAssigned PausePolicy = "requeue_assigned"
)

// Service validates and applies operator commands against the registry.
// Validation errors surface synchronously; rescheduling after a capacity
// increase happens through the published events.
type Service struct {
	registry    portregistry.Registry
	queue       portqueue.Queue
	store       porttaskstore.Store
	bus         porteventbus.Bus
	pausePolicy PausePolicy
}

func NewService(
	registry portregistry.Registry,
	queue portqueue.Queue,
	store porttaskstore.Store,
	bus porteventbus.Bus,
	pausePolicy PausePolicy,
) *Service {
	if pausePolicy == "" {
		pausePolicy = PolicyBlockNew
	}
	return &Service{
		registry:    registry,
		queue:       queue,
		store:       store,
		bus:         bus,
		pausePolicy: pausePolicy,
	}
}

// Pause blocks new assignment to the agent. In-flight tasks keep running
// until the agent reports their outcome.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	a, err := s.registry.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("pause agent: %w", err)
	}
	if err := s.registry.SetState(ctx, id, domainagent.StatePaused); err != nil {
		return fmt.Errorf("pause agent: %w", err)
	}

	if s.pausePolicy == PolicyRequeueAssigned {
		if err := s.requeueAssigned(ctx, a); err != nil {
			slog.ErrorContext(ctx, "pause: requeue of assigned tasks incomplete", "agent_id", id, "error", err)
		}
	}

	if err := s.bus.Publish(ctx, event.New(event.TypeAgentPaused, id, a.TenantID)); err != nil {
		slog.ErrorContext(ctx, "failed to publish AgentPaused event", "agent_id", id, "error", err)
	}
	return nil
}

// Resume returns a paused agent to service and lets the scheduler pick up
// queued work via the published event.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	a, err := s.registry.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("resume agent: %w", err)
	}

	state := domainagent.StateIdle
	if a.CurrentTasks > 0 {
		state = domainagent.StateRunning
	}
	if err := s.registry.SetState(ctx, id, state); err != nil {
		return fmt.Errorf("resume agent: %w", err)
	}

	if err := s.bus.Publish(ctx, event.New(event.TypeAgentResumed, id, a.TenantID)); err != nil {
		slog.ErrorContext(ctx, "failed to publish AgentResumed event", "agent_id", id, "error", err)
	}
	return nil
}

// Rescale updates the agent's concurrency limit. Shrinking below the current
// in-flight load is refused — the caller must wait for drain.
func (s *Service) Rescale(ctx context.Context, id uuid.UUID, newMax int) error {
	a, err := s.registry.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("rescale agent: %w", err)
	}
	if newMax < 1 {
		return fmt.Errorf("rescale agent to %d: %w", newMax, portregistry.ErrInvalidCapacity)
	}
	if err := s.registry.SetCapacity(ctx, id, newMax); err != nil {
		return fmt.Errorf("rescale agent to %d: %w", newMax, err)
	}

	slog.InfoContext(ctx, "agent rescaled", "agent_id", id, "max_concurrent_tasks", newMax)

	// Only growth can unblock queued work, but the event is cheap and a pass
	// that finds nothing to do is a no-op.
	if newMax > a.MaxConcurrentTasks {
		if err := s.bus.Publish(ctx, event.New(event.TypeAgentRescaled, id, a.TenantID)); err != nil {
			slog.ErrorContext(ctx, "failed to publish AgentRescaled event", "agent_id", id, "error", err)
		}
	}
	return nil
}

// requeueAssigned pulls tasks the agent never started back into the backlog
// and releases their slots.
func (s *Service) requeueAssigned(ctx context.Context, a domainagent.Agent) error {
	status := domaintask.StatusAssigned
	assigned, err := s.store.List(ctx, domaintask.ListFilters{AssignedTo: &a.ID, Status: &status})
	if err != nil {
		return fmt.Errorf("list assigned tasks: %w", err)
	}
	for _, t := range assigned {
		requeued, err := s.store.Requeue(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("requeue task %s: %w", t.ID, err)
		}
		if err := s.queue.Enqueue(ctx, requeued); err != nil {
			return fmt.Errorf("enqueue task %s: %w", t.ID, err)
		}
		if err := s.registry.ReleaseSlot(ctx, a.ID); err != nil {
			return fmt.Errorf("release slot for task %s: %w", t.ID, err)
		}
		s.bus.Publish(ctx, event.New(event.TypeTaskQueued, t.ID, t.TenantID)) //nolint:errcheck
	}
	return nil
}
