package taskstore

import (
	"context"
	"errors"

	"github.com/google/uuid"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
)

var (
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTransition: the task is no longer in a status the requested
	// transition is valid from — a Mark call raced a cancel or another pass.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Store holds every task the engine has seen, including terminal ones, which
// are retained for audit and metrics but are no longer schedulable.
type Store interface {
	Create(ctx context.Context, t domaintask.Task) (domaintask.Task, error)
	Get(ctx context.Context, id uuid.UUID) (domaintask.Task, error)
	List(ctx context.Context, filters domaintask.ListFilters) ([]domaintask.Task, error)

	// MarkAssigned moves Queued→Assigned and sets the agent id, exactly once.
	// ErrInvalidTransition when the task is no longer Queued.
	MarkAssigned(ctx context.Context, id, agentID uuid.UUID) (domaintask.Task, error)
	// MarkRunning moves Assigned→Running and stamps StartedAt.
	MarkRunning(ctx context.Context, id uuid.UUID) (domaintask.Task, error)
	// MarkTerminal records the reported outcome and clears scheduling state.
	// ErrInvalidTransition when the task is already terminal.
	MarkTerminal(ctx context.Context, id uuid.UUID, status domaintask.Status, errMsg string, durationMs int64) (domaintask.Task, error)
	// Requeue returns an Assigned-but-not-Running task to Queued, clearing
	// its agent. Used by the requeue_assigned pause policy.
	Requeue(ctx context.Context, id uuid.UUID) (domaintask.Task, error)
}
