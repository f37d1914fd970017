package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
)

var ErrNotFound = errors.New("task not in queue")

// Queue is a tenant-scoped, priority-ordered backlog of tasks awaiting
// assignment. Ordering is strict priority precedence, FIFO within a band,
// ties broken by task id.
type Queue interface {
	Enqueue(ctx context.Context, t domaintask.Task) error
	// Remove takes a queued task out of the backlog, e.g. on assignment or
	// cancellation. Returns ErrNotFound if the task is not queued.
	Remove(ctx context.Context, tenantID, taskID uuid.UUID) error
	// Queued returns the tenant's backlog in scheduling order.
	Queued(ctx context.Context, tenantID uuid.UUID) ([]domaintask.Task, error)
	// Depth returns per-band queue counts.
	Depth(ctx context.Context, tenantID uuid.UUID) (map[domaintask.Priority]int, error)
	// Position computes a task's rank in line: tasks ahead of it in higher
	// bands plus its rank within its own band. Computed on query, not stored.
	Position(ctx context.Context, tenantID, taskID uuid.UUID) (int, error)
}
