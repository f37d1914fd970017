package taskstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	porttaskstore "github.com/agentprovision/orchestrator/internal/port/taskstore"
)

var _ porttaskstore.Store = (*Store)(nil)

// Store keeps every task in memory, terminal ones included, so snapshots and
// audits can read completed work without a database round-trip.
type Store struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]domaintask.Task
}

func New() *Store {
	return &Store{tasks: make(map[uuid.UUID]domaintask.Task)}
}

func (s *Store) Create(_ context.Context, t domaintask.Task) (domaintask.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (domaintask.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return domaintask.Task{}, porttaskstore.ErrNotFound
	}
	return t, nil
}

func (s *Store) List(_ context.Context, filters domaintask.ListFilters) ([]domaintask.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domaintask.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filters.TenantID != nil && t.TenantID != *filters.TenantID {
			continue
		}
		if filters.Status != nil && t.Status != *filters.Status {
			continue
		}
		if filters.Priority != nil && t.Priority != *filters.Priority {
			continue
		}
		if filters.AssignedTo != nil && (t.AssignedAgentID == nil || *t.AssignedAgentID != *filters.AssignedTo) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) MarkAssigned(_ context.Context, id, agentID uuid.UUID) (domaintask.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domaintask.Task{}, porttaskstore.ErrNotFound
	}
	if !t.Status.CanTransitionTo(domaintask.StatusAssigned) {
		return domaintask.Task{}, porttaskstore.ErrInvalidTransition
	}
	t.Status = domaintask.StatusAssigned
	t.AssignedAgentID = &agentID
	s.tasks[id] = t
	return t, nil
}

func (s *Store) MarkRunning(_ context.Context, id uuid.UUID) (domaintask.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domaintask.Task{}, porttaskstore.ErrNotFound
	}
	if !t.Status.CanTransitionTo(domaintask.StatusRunning) {
		return domaintask.Task{}, porttaskstore.ErrInvalidTransition
	}
	now := time.Now().UTC()
	t.Status = domaintask.StatusRunning
	t.StartedAt = &now
	s.tasks[id] = t
	return t, nil
}

func (s *Store) MarkTerminal(_ context.Context, id uuid.UUID, status domaintask.Status, errMsg string, durationMs int64) (domaintask.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domaintask.Task{}, porttaskstore.ErrNotFound
	}
	if !t.Status.CanTransitionTo(status) {
		return domaintask.Task{}, porttaskstore.ErrInvalidTransition
	}
	now := time.Now().UTC()
	t.Status = status
	t.Error = errMsg
	t.DurationMs = durationMs
	t.CompletedAt = &now
	// Terminal tasks carry no live assignment — the slot was already released.
	t.AssignedAgentID = nil
	s.tasks[id] = t
	return t, nil
}

func (s *Store) Requeue(_ context.Context, id uuid.UUID) (domaintask.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domaintask.Task{}, porttaskstore.ErrNotFound
	}
	if t.Status != domaintask.StatusAssigned {
		return domaintask.Task{}, porttaskstore.ErrInvalidTransition
	}
	t.Status = domaintask.StatusQueued
	t.AssignedAgentID = nil
	s.tasks[id] = t
	return t, nil
}
