package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/agentprovision/orchestrator/internal/domain/event"
	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	portarchive "github.com/agentprovision/orchestrator/internal/port/archive"
	porteventbus "github.com/agentprovision/orchestrator/internal/port/eventbus"
	portqueue "github.com/agentprovision/orchestrator/internal/port/queue"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
	porttaskstore "github.com/agentprovision/orchestrator/internal/port/taskstore"
)

var (
	ErrInvalidPriority = errors.New("invalid task priority")
	// ErrNotQueued: only queued tasks can be cancelled through the engine;
	// cancelling in-flight work is the execution runtime's job.
	ErrNotQueued = errors.New("task is not queued")
	// ErrNotInFlight: outcome reports are only valid for assigned or running tasks.
	ErrNotInFlight = errors.New("task is not in flight")
)

// Service owns the task lifecycle: submission into the queue, start and
// outcome reports from the execution runtime, and cancellation of queued work.
type Service struct {
	store    porttaskstore.Store
	queue    portqueue.Queue
	registry portregistry.Registry
	bus      porteventbus.Bus
	archive  portarchive.Store
}

func NewService(
	store porttaskstore.Store,
	queue portqueue.Queue,
	registry portregistry.Registry,
	bus porteventbus.Bus,
	archive portarchive.Store,
) *Service {
	return &Service{
		store:    store,
		queue:    queue,
		registry: registry,
		bus:      bus,
		archive:  archive,
	}
}

// Submit accepts a task into the backlog. A tenant with zero registered
// agents is not rejected — tasks may queue indefinitely until capacity shows up.
func (s *Service) Submit(ctx context.Context, tenantID uuid.UUID, agentType, payloadRef string, priority domaintask.Priority) (domaintask.Task, error) {
	if !priority.Valid() {
		return domaintask.Task{}, fmt.Errorf("submit task: %w: %q", ErrInvalidPriority, priority)
	}
	t := domaintask.New(tenantID, agentType, payloadRef, priority)

	created, err := s.store.Create(ctx, t)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("submit task: %w", err)
	}
	if err := s.queue.Enqueue(ctx, created); err != nil {
		return domaintask.Task{}, fmt.Errorf("enqueue task: %w", err)
	}

	// TaskQueued triggers a scheduling pass for the tenant.
	if err := s.bus.Publish(ctx, event.New(event.TypeTaskQueued, created.ID, tenantID)); err != nil {
		slog.ErrorContext(ctx, "failed to publish TaskQueued event", "task_id", created.ID, "error", err)
	}
	return created, nil
}

// Detail is a task plus its lazily computed queue position, present only
// while the task is still queued.
type Detail struct {
	domaintask.Task
	QueuePosition *int `json:"queue_position,omitempty"`
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Detail, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("get task: %w", err)
	}
	d := Detail{Task: t}
	if t.Status == domaintask.StatusQueued {
		pos, err := s.queue.Position(ctx, t.TenantID, t.ID)
		if err == nil {
			d.QueuePosition = &pos
		}
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, filters domaintask.ListFilters) ([]domaintask.Task, error) {
	tasks, err := s.store.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Cancel removes a queued task before assignment. Safe at any time while the
// task is still in the backlog; once assigned, the engine only records the
// terminal state reported by the runtime.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domaintask.Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("cancel task: %w", err)
	}
	if t.Status != domaintask.StatusQueued {
		return domaintask.Task{}, fmt.Errorf("cancel task %s in status %s: %w", id, t.Status, ErrNotQueued)
	}

	if err := s.queue.Remove(ctx, t.TenantID, t.ID); err != nil {
		return domaintask.Task{}, fmt.Errorf("remove task from queue: %w", err)
	}
	cancelled, err := s.store.MarkTerminal(ctx, id, domaintask.StatusCancelled, "", 0)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("mark task cancelled: %w", err)
	}

	s.bus.Publish(ctx, event.New(event.TypeTaskCancelled, id, t.TenantID)) //nolint:errcheck
	s.archiveTerminal(ctx, cancelled)
	return cancelled, nil
}

// Start records that the execution runtime began running an assigned task.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (domaintask.Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("start task: %w", err)
	}
	if t.Status != domaintask.StatusAssigned {
		return domaintask.Task{}, fmt.Errorf("start task %s in status %s: %w", id, t.Status, ErrNotInFlight)
	}

	started, err := s.store.MarkRunning(ctx, id)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("mark task running: %w", err)
	}
	s.bus.Publish(ctx, event.New(event.TypeTaskStarted, id, t.TenantID)) //nolint:errcheck
	return started, nil
}

// ReportOutcome records a terminal state from the execution runtime, frees the
// agent's slot, and folds the result into the agent's rolling stats. Execution
// failures are task data, never engine faults.
func (s *Service) ReportOutcome(ctx context.Context, id uuid.UUID, success bool, durationMs int64, errMsg string) (domaintask.Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("report outcome: %w", err)
	}
	if t.Status != domaintask.StatusAssigned && t.Status != domaintask.StatusRunning {
		return domaintask.Task{}, fmt.Errorf("report outcome for task %s in status %s: %w", id, t.Status, ErrNotInFlight)
	}
	agentID := *t.AssignedAgentID

	status := domaintask.StatusCompleted
	eventType := event.TypeTaskCompleted
	if !success {
		status = domaintask.StatusFailed
		eventType = event.TypeTaskFailed
	}

	terminal, err := s.store.MarkTerminal(ctx, id, status, errMsg, durationMs)
	if err != nil {
		return domaintask.Task{}, fmt.Errorf("mark task terminal: %w", err)
	}

	if err := s.registry.ReleaseSlot(ctx, agentID); err != nil {
		slog.ErrorContext(ctx, "failed to release slot after outcome", "agent_id", agentID, "task_id", id, "error", err)
	}
	if err := s.registry.RecordOutcome(ctx, agentID, success, durationMs); err != nil {
		slog.ErrorContext(ctx, "failed to record outcome stats", "agent_id", agentID, "task_id", id, "error", err)
	}

	// The completion event frees a slot, so it also triggers a scheduling pass.
	s.bus.Publish(ctx, event.New(eventType, id, t.TenantID)) //nolint:errcheck
	s.archiveTerminal(ctx, terminal)
	return terminal, nil
}

// archiveTerminal writes the audit record. Failures are logged — the task
// store stays authoritative for metrics either way.
func (s *Service) archiveTerminal(ctx context.Context, t domaintask.Task) {
	if err := s.archive.ArchiveTask(ctx, t); err != nil {
		slog.ErrorContext(ctx, "failed to archive terminal task", "task_id", t.ID, "error", err)
	}
}
