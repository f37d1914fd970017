package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"

	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
)

var (
	ErrNotFound        = errors.New("agent not found")
	ErrAgentBusy       = errors.New("agent has in-flight tasks")
	ErrInvalidCapacity = errors.New("invalid capacity")
)

// Registry is the single source of truth for agent state within a tenant.
// All mutations to one agent's counters are serialised behind the registry
// (single-writer-per-agent), so ReserveSlot/ReleaseSlot are safe to call from
// concurrent scheduling passes and outcome reports.
type Registry interface {
	Register(ctx context.Context, a domainagent.Agent) (domainagent.Agent, error)
	// Deregister removes an agent. Fails with ErrAgentBusy while CurrentTasks > 0.
	Deregister(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (domainagent.Agent, error)
	List(ctx context.Context, filters domainagent.ListFilters) ([]domainagent.Agent, error)

	// ReserveSlot atomically increments CurrentTasks iff the agent is healthy,
	// not paused or errored, and below capacity. It is the only increment path.
	ReserveSlot(ctx context.Context, id uuid.UUID) (bool, error)
	// ReleaseSlot decrements CurrentTasks, clamped at zero.
	ReleaseSlot(ctx context.Context, id uuid.UUID) error

	UpdateHealth(ctx context.Context, id uuid.UUID, sample domainagent.HealthSample) (domainagent.Agent, error)
	SetHealthy(ctx context.Context, id uuid.UUID, healthy bool) error
	SetState(ctx context.Context, id uuid.UUID, state domainagent.State) error
	// SetCapacity updates MaxConcurrentTasks. Fails with ErrInvalidCapacity if
	// maxConcurrent < 1 or below the agent's in-flight load — the check happens
	// under the agent's lock so a racing ReserveSlot cannot slip past it.
	SetCapacity(ctx context.Context, id uuid.UUID, maxConcurrent int) error

	// RecordOutcome folds one task outcome into the agent's rolling
	// success rate and average duration.
	RecordOutcome(ctx context.Context, id uuid.UUID, success bool, duration int64) error
}

// CandidateReader is the narrow interface the scheduler needs: agents of a
// given type that could accept work, ordered by ascending utilization,
// ties broken by agent id.
type CandidateReader interface {
	Candidates(ctx context.Context, tenantID uuid.UUID, agentType string) ([]domainagent.Agent, error)
}
