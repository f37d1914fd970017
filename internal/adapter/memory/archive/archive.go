package archive

import (
	"context"
	"sync"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	portarchive "github.com/agentprovision/orchestrator/internal/port/archive"
)

var _ portarchive.Store = (*Store)(nil)

// Store is the in-memory audit sink, used when no database is configured.
type Store struct {
	mu    sync.RWMutex
	tasks []domaintask.Task
}

func New() *Store {
	return &Store{}
}

func (s *Store) ArchiveTask(_ context.Context, t domaintask.Task) error {
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return nil
}

// Archived returns a copy of everything archived so far.
func (s *Store) Archived() []domaintask.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domaintask.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}
