package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/agentprovision/orchestrator/internal/domain/event"
	portdispatcher "github.com/agentprovision/orchestrator/internal/port/dispatcher"
	porteventbus "github.com/agentprovision/orchestrator/internal/port/eventbus"
	portqueue "github.com/agentprovision/orchestrator/internal/port/queue"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
	porttaskstore "github.com/agentprovision/orchestrator/internal/port/taskstore"
)

// Service drains the priority queue into available agent slots. Passes are
// idempotent and re-entrant: ReserveSlot is the only gate, so two racing
// passes can never double-assign a task or push an agent past capacity.
// Inability to place a task is normal backpressure, never an error.
type Service struct {
	queue      portqueue.Queue
	store      porttaskstore.Store
	registry   portregistry.Registry
	candidates portregistry.CandidateReader
	bus        porteventbus.Bus
	dispatcher portdispatcher.Dispatcher

	// sem bounds how many tenant passes run at once; pending coalesces
	// repeated triggers for the same tenant into a single queued pass.
	sem     *semaphore.Weighted
	mu      sync.Mutex
	pending map[uuid.UUID]bool
}

func NewService(
	queue portqueue.Queue,
	store porttaskstore.Store,
	registry portregistry.Registry,
	candidates portregistry.CandidateReader,
	bus porteventbus.Bus,
	dispatcher portdispatcher.Dispatcher,
	workers int64,
) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		queue:      queue,
		store:      store,
		registry:   registry,
		candidates: candidates,
		bus:        bus,
		dispatcher: dispatcher,
		sem:        semaphore.NewWeighted(workers),
		pending:    make(map[uuid.UUID]bool),
	}
}

// Start subscribes the scheduler to every state change that can free or
// demand capacity: enqueues, outcome reports, health recovery, resume,
// rescale. Each one triggers a coalesced pass for the affected tenant.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.bus.Subscribe(ctx, event.ChannelTask, func(_ context.Context, e event.Event) {
		switch e.Type {
		case event.TypeTaskQueued, event.TypeTaskCompleted, event.TypeTaskFailed, event.TypeTaskCancelled:
			s.Trigger(e.TenantID)
		}
	}); err != nil {
		return fmt.Errorf("subscribe task channel: %w", err)
	}
	if _, err := s.bus.Subscribe(ctx, event.ChannelAgent, func(_ context.Context, e event.Event) {
		switch e.Type {
		case event.TypeAgentRegistered, event.TypeAgentHealthy, event.TypeAgentResumed, event.TypeAgentRescaled:
			s.Trigger(e.TenantID)
		}
	}); err != nil {
		return fmt.Errorf("subscribe agent channel: %w", err)
	}
	return nil
}

// Trigger requests an asynchronous pass for the tenant. Triggers arriving
// while a pass is already queued for the same tenant are coalesced.
// context.Background() so the pass outlives the request that triggered it.
func (s *Service) Trigger(tenantID uuid.UUID) {
	s.mu.Lock()
	if s.pending[tenantID] {
		s.mu.Unlock()
		return
	}
	s.pending[tenantID] = true
	s.mu.Unlock()

	go func() {
		ctx := context.Background()
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer s.sem.Release(1)

		// Clear pending before the pass so a trigger landing mid-pass
		// schedules a fresh one instead of being lost.
		s.mu.Lock()
		delete(s.pending, tenantID)
		s.mu.Unlock()

		if _, err := s.Pass(ctx, tenantID); err != nil {
			slog.Error("scheduling pass failed", "tenant_id", tenantID, "error", err)
		}
	}()
}

// Pass runs one queue-drain attempt for the tenant and returns how many tasks
// it assigned. Band order is strict (critical first), FIFO within a band, and
// a task with no eligible agent never blocks eligible tasks behind it.
func (s *Service) Pass(ctx context.Context, tenantID uuid.UUID) (int, error) {
	queued, err := s.queue.Queued(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("read backlog: %w", err)
	}

	assigned := 0
	for _, t := range queued {
		agents, err := s.candidates.Candidates(ctx, tenantID, t.AgentType)
		if err != nil {
			return assigned, fmt.Errorf("list candidates for type %q: %w", t.AgentType, err)
		}

		for _, a := range agents {
			ok, err := s.registry.ReserveSlot(ctx, a.ID)
			if err != nil {
				// Candidate deregistered between read and reserve — try the next.
				continue
			}
			if !ok {
				continue
			}

			if err := s.assign(ctx, t.ID, t.TenantID, a.ID); err != nil {
				if relErr := s.registry.ReleaseSlot(ctx, a.ID); relErr != nil {
					slog.ErrorContext(ctx, "release after failed assignment", "agent_id", a.ID, "error", relErr)
				}
				if errors.Is(err, porttaskstore.ErrInvalidTransition) {
					// The task left the backlog between the snapshot and the
					// claim — cancelled, or taken by a racing pass. Skip it.
					break
				}
				slog.ErrorContext(ctx, "assignment failed after reservation, releasing slot",
					"task_id", t.ID, "agent_id", a.ID, "error", err)
				continue
			}
			assigned++
			break
		}
		// No candidate accepted: the task stays queued and the pass moves on.
	}
	return assigned, nil
}

func (s *Service) assign(ctx context.Context, taskID, tenantID, agentID uuid.UUID) error {
	task, err := s.store.MarkAssigned(ctx, taskID, agentID)
	if err != nil {
		return fmt.Errorf("mark assigned: %w", err)
	}
	if err := s.queue.Remove(ctx, tenantID, taskID); err != nil {
		return fmt.Errorf("remove from queue: %w", err)
	}

	s.bus.Publish(ctx, event.New(event.TypeTaskAssigned, taskID, tenantID)) //nolint:errcheck

	// Fire-and-forget handoff: the execution runtime reports the outcome back
	// later, so a delivery failure is logged and the assignment stands.
	if err := s.dispatcher.Dispatch(ctx, task, agentID); err != nil {
		slog.WarnContext(ctx, "task dispatch not delivered", "task_id", taskID, "agent_id", agentID, "error", err)
	}
	return nil
}
