package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	portqueue "github.com/agentprovision/orchestrator/internal/port/queue"
)

var _ portqueue.Queue = (*Queue)(nil)

// Queue is the in-memory priority backlog. Each tenant gets an independent
// set of four band slices, kept in FIFO order by enqueue time with ties broken
// by task id. Positions are computed on query, never stored, so inserting a
// higher-priority task cannot leave stale ranks behind.
type Queue struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*backlog
}

type backlog struct {
	bands map[domaintask.Priority][]domaintask.Task
}

func New() *Queue {
	return &Queue{tenants: make(map[uuid.UUID]*backlog)}
}

func (q *Queue) Enqueue(_ context.Context, t domaintask.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok := q.tenants[t.TenantID]
	if !ok {
		b = &backlog{bands: make(map[domaintask.Priority][]domaintask.Task)}
		q.tenants[t.TenantID] = b
	}
	band := append(b.bands[t.Priority], t)
	sort.SliceStable(band, func(i, j int) bool {
		if !band[i].CreatedAt.Equal(band[j].CreatedAt) {
			return band[i].CreatedAt.Before(band[j].CreatedAt)
		}
		return band[i].ID.String() < band[j].ID.String()
	})
	b.bands[t.Priority] = band
	return nil
}

func (q *Queue) Remove(_ context.Context, tenantID, taskID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok := q.tenants[tenantID]
	if !ok {
		return portqueue.ErrNotFound
	}
	for priority, band := range b.bands {
		for i, t := range band {
			if t.ID == taskID {
				b.bands[priority] = append(band[:i], band[i+1:]...)
				return nil
			}
		}
	}
	return portqueue.ErrNotFound
}

func (q *Queue) Queued(_ context.Context, tenantID uuid.UUID) ([]domaintask.Task, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	b, ok := q.tenants[tenantID]
	if !ok {
		return []domaintask.Task{}, nil
	}
	var out []domaintask.Task
	for _, priority := range domaintask.Bands {
		out = append(out, b.bands[priority]...)
	}
	if out == nil {
		out = []domaintask.Task{}
	}
	return out, nil
}

func (q *Queue) Depth(_ context.Context, tenantID uuid.UUID) (map[domaintask.Priority]int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	depth := make(map[domaintask.Priority]int, len(domaintask.Bands))
	for _, priority := range domaintask.Bands {
		depth[priority] = 0
	}
	if b, ok := q.tenants[tenantID]; ok {
		for priority, band := range b.bands {
			depth[priority] = len(band)
		}
	}
	return depth, nil
}

// Position is the count of tasks ahead of the given one across all higher
// bands plus its rank within its own band.
func (q *Queue) Position(_ context.Context, tenantID, taskID uuid.UUID) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	b, ok := q.tenants[tenantID]
	if !ok {
		return 0, portqueue.ErrNotFound
	}
	pos := 0
	for _, priority := range domaintask.Bands {
		for _, t := range b.bands[priority] {
			if t.ID == taskID {
				return pos, nil
			}
			pos++
		}
	}
	return 0, portqueue.ErrNotFound
}
