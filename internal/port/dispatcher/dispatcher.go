package dispatcher

import (
	"context"

	"github.com/google/uuid"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
)

// Dispatcher hands an assigned task to the external execution runtime.
// The handoff is fire-and-forget: the engine never blocks on task execution,
// and a failed delivery is logged by the caller, not treated as a fault —
// the agent runtime reports outcomes back through the task service.
type Dispatcher interface {
	Dispatch(ctx context.Context, t domaintask.Task, agentID uuid.UUID) error
}
