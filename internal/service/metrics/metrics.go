package metrics

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	"github.com/agentprovision/orchestrator/internal/domain/snapshot"
	portqueue "github.com/agentprovision/orchestrator/internal/port/queue"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
	porttaskstore "github.com/agentprovision/orchestrator/internal/port/taskstore"
)

// Service is the pure read side: every snapshot is recomputed from the
// registry, queue, and task store on the spot. Nothing is cached, so the
// staleness window is bounded by query latency alone.
type Service struct {
	registry portregistry.Registry
	queue    portqueue.Queue
	store    porttaskstore.Store
}

func NewService(registry portregistry.Registry, queue portqueue.Queue, store porttaskstore.Store) *Service {
	return &Service{registry: registry, queue: queue, store: store}
}

func (s *Service) Snapshot(ctx context.Context, tenantID uuid.UUID) (snapshot.Snapshot, error) {
	agents, err := s.registry.List(ctx, domainagent.ListFilters{TenantID: &tenantID})
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot agents: %w", err)
	}

	var snap snapshot.Snapshot
	snap.Agents.Total = len(agents)
	for _, a := range agents {
		if a.State == domainagent.StateRunning {
			snap.Agents.Active++
		}
		if a.Healthy {
			snap.Agents.Healthy++
		}
		snap.Capacity.MaxTasks += a.MaxConcurrentTasks
		snap.Capacity.CurrentTasks += a.CurrentTasks
	}
	if snap.Capacity.MaxTasks > 0 {
		pct := float64(snap.Capacity.CurrentTasks) / float64(snap.Capacity.MaxTasks) * 100
		snap.Agents.UtilizationPercent = math.Round(pct*100) / 100
	}
	// Never negative: per-agent CurrentTasks <= MaxConcurrentTasks always holds.
	snap.Capacity.AvailableCapacity = snap.Capacity.MaxTasks - snap.Capacity.CurrentTasks

	depth, err := s.queue.Depth(ctx, tenantID)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("snapshot queue depth: %w", err)
	}
	snap.Tasks.QueueBreakdown = depth
	for _, n := range depth {
		snap.Tasks.Queued += n
	}

	for _, status := range []domaintask.Status{domaintask.StatusAssigned, domaintask.StatusRunning} {
		st := status
		inflight, err := s.store.List(ctx, domaintask.ListFilters{TenantID: &tenantID, Status: &st})
		if err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("snapshot in-flight tasks: %w", err)
		}
		snap.Tasks.Running += len(inflight)
	}

	return snap, nil
}
