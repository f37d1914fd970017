package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
)

var _ portregistry.Registry = (*Registry)(nil)
var _ portregistry.CandidateReader = (*Registry)(nil)

// record wraps one agent with its own lock. Every counter mutation happens
// under this lock — the single-writer-per-agent discipline that keeps
// 0 <= CurrentTasks <= MaxConcurrentTasks under concurrent scheduling passes.
type record struct {
	mu    sync.Mutex
	agent domainagent.Agent
}

// Registry is the in-memory source of truth for agent state. The outer map
// lock only guards membership; per-agent state is guarded by the record lock,
// so scheduling on one agent never contends with another.
type Registry struct {
	mu     sync.RWMutex
	agents map[uuid.UUID]*record
}

func New() *Registry {
	return &Registry{agents: make(map[uuid.UUID]*record)}
}

func (r *Registry) Register(_ context.Context, a domainagent.Agent) (domainagent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID] = &record{agent: a}
	return a, nil
}

func (r *Registry) Deregister(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[id]
	if !ok {
		return portregistry.ErrNotFound
	}
	rec.mu.Lock()
	busy := rec.agent.CurrentTasks > 0
	rec.mu.Unlock()
	if busy {
		return portregistry.ErrAgentBusy
	}
	delete(r.agents, id)
	return nil
}

func (r *Registry) Get(_ context.Context, id uuid.UUID) (domainagent.Agent, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return domainagent.Agent{}, portregistry.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.agent, nil
}

func (r *Registry) List(_ context.Context, filters domainagent.ListFilters) ([]domainagent.Agent, error) {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.agents))
	for _, rec := range r.agents {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	agents := make([]domainagent.Agent, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		a := rec.agent
		rec.mu.Unlock()

		if filters.TenantID != nil && a.TenantID != *filters.TenantID {
			continue
		}
		if filters.Type != nil && a.Type != *filters.Type {
			continue
		}
		if filters.State != nil && a.State != *filters.State {
			continue
		}
		if filters.Healthy != nil && a.Healthy != *filters.Healthy {
			continue
		}
		agents = append(agents, a)
	}

	sort.Slice(agents, func(i, j int) bool {
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	return agents, nil
}

// Candidates returns agents of the given type that could accept work, ordered
// by ascending utilization to favour load balancing, ties broken by agent id
// for determinism.
func (r *Registry) Candidates(_ context.Context, tenantID uuid.UUID, agentType string) ([]domainagent.Agent, error) {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.agents))
	for _, rec := range r.agents {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	candidates := make([]domainagent.Agent, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		a := rec.agent
		rec.mu.Unlock()
		if a.TenantID != tenantID || a.Type != agentType {
			continue
		}
		if !a.Available() {
			continue
		}
		candidates = append(candidates, a)
	}

	sort.Slice(candidates, func(i, j int) bool {
		ui, uj := candidates[i].Utilization(), candidates[j].Utilization()
		if ui != uj {
			return ui < uj
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	return candidates, nil
}

// ReserveSlot is the only increment path for CurrentTasks. The eligibility
// check and increment happen under the record lock, so two racing passes can
// never push an agent past capacity.
func (r *Registry) ReserveSlot(_ context.Context, id uuid.UUID) (bool, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return false, portregistry.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.agent.Available() {
		return false, nil
	}
	rec.agent.CurrentTasks++
	if rec.agent.State == domainagent.StateIdle {
		rec.agent.State = domainagent.StateRunning
	}
	return true, nil
}

func (r *Registry) ReleaseSlot(_ context.Context, id uuid.UUID) error {
	rec, ok := r.lookup(id)
	if !ok {
		return portregistry.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.agent.CurrentTasks > 0 {
		rec.agent.CurrentTasks--
	}
	if rec.agent.CurrentTasks == 0 && rec.agent.State == domainagent.StateRunning {
		rec.agent.State = domainagent.StateIdle
	}
	return nil
}

func (r *Registry) UpdateHealth(_ context.Context, id uuid.UUID, sample domainagent.HealthSample) (domainagent.Agent, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return domainagent.Agent{}, portregistry.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.agent.CPUUsage = sample.CPUUsage
	rec.agent.MemoryUsage = sample.MemoryUsage
	reportedAt := sample.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now().UTC()
	}
	rec.agent.LastHealthCheck = reportedAt
	return rec.agent, nil
}

func (r *Registry) SetHealthy(_ context.Context, id uuid.UUID, healthy bool) error {
	rec, ok := r.lookup(id)
	if !ok {
		return portregistry.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.agent.Healthy = healthy
	return nil
}

func (r *Registry) SetState(_ context.Context, id uuid.UUID, state domainagent.State) error {
	rec, ok := r.lookup(id)
	if !ok {
		return portregistry.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.agent.State = state
	return nil
}

func (r *Registry) SetCapacity(_ context.Context, id uuid.UUID, maxConcurrent int) error {
	rec, ok := r.lookup(id)
	if !ok {
		return portregistry.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	// Checked under the record lock so a concurrent ReserveSlot cannot land
	// between the check and the write.
	if maxConcurrent < 1 || maxConcurrent < rec.agent.CurrentTasks {
		return portregistry.ErrInvalidCapacity
	}
	rec.agent.MaxConcurrentTasks = maxConcurrent
	return nil
}

// RecordOutcome folds one task outcome into the agent's cumulative success
// rate and average duration.
func (r *Registry) RecordOutcome(_ context.Context, id uuid.UUID, success bool, durationMs int64) error {
	rec, ok := r.lookup(id)
	if !ok {
		return portregistry.ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	n := float64(rec.agent.CompletedTasks)
	s := 0.0
	if success {
		s = 1.0
	}
	rec.agent.SuccessRate = (rec.agent.SuccessRate*n + s) / (n + 1)

	d := time.Duration(durationMs) * time.Millisecond
	rec.agent.AvgTaskDuration = time.Duration((float64(rec.agent.AvgTaskDuration)*n + float64(d)) / (n + 1))
	rec.agent.CompletedTasks++
	return nil
}

func (r *Registry) lookup(id uuid.UUID) (*record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.agents[id]
	return rec, ok
}
