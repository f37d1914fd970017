package task

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusAssigned  Status = "assigned"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusRunning, StatusCompleted, StatusFailed, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Terminal reports whether a task in this status is retained for audit only
// and is no longer schedulable.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Bands lists all priorities in scheduling order, highest first.
var Bands = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// Rank orders priorities for scheduling; lower rank schedules first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

func (p Priority) Valid() bool {
	return p.Rank() < 4
}

type Task struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	AgentType       string     `json:"agent_type"`
	PayloadRef      string     `json:"payload_ref"`
	Priority        Priority   `json:"priority"`
	Status          Status     `json:"status"`
	AssignedAgentID *uuid.UUID `json:"assigned_agent_id,omitempty"`
	Error           string     `json:"error,omitempty"`
	DurationMs      int64      `json:"duration_ms,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func New(tenantID uuid.UUID, agentType, payloadRef string, priority Priority) Task {
	return Task{
		ID:         uuid.New(),
		TenantID:   tenantID,
		AgentType:  agentType,
		PayloadRef: payloadRef,
		Priority:   priority,
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
}

type ListFilters struct {
	TenantID   *uuid.UUID
	Status     *Status
	Priority   *Priority
	AssignedTo *uuid.UUID
}
