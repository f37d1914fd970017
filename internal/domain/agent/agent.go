package agent

import (
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateError   State = "error"
)

type Agent struct {
	ID                 uuid.UUID     `json:"id"`
	TenantID           uuid.UUID     `json:"tenant_id"`
	Name               string        `json:"name"`
	Type               string        `json:"type"`
	State              State         `json:"state"`
	MaxConcurrentTasks int           `json:"max_concurrent_tasks"`
	CurrentTasks       int           `json:"current_tasks"`
	Healthy            bool          `json:"healthy"`
	LastHealthCheck    time.Time     `json:"last_health_check"`
	CPUUsage           float64       `json:"cpu_usage"`
	MemoryUsage        int64         `json:"memory_usage"`
	SuccessRate        float64       `json:"success_rate"`
	AvgTaskDuration    time.Duration `json:"avg_task_duration"`
	CompletedTasks     int           `json:"completed_tasks"`
	CreatedAt          time.Time     `json:"created_at"`
}

func New(tenantID uuid.UUID, name, agentType string, maxConcurrent int) Agent {
	now := time.Now().UTC()
	return Agent{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		Name:               name,
		Type:               agentType,
		State:              StateIdle,
		MaxConcurrentTasks: maxConcurrent,
		Healthy:            true,
		LastHealthCheck:    now,
		SuccessRate:        1.0,
		CreatedAt:          now,
	}
}

// Utilization is the fraction of capacity in use, in [0, 1].
func (a *Agent) Utilization() float64 {
	if a.MaxConcurrentTasks == 0 {
		return 0
	}
	return float64(a.CurrentTasks) / float64(a.MaxConcurrentTasks)
}

// Available reports whether the scheduler may reserve a slot on this agent.
// Paused and errored agents keep their in-flight tasks but accept no new work.
func (a *Agent) Available() bool {
	if !a.Healthy {
		return false
	}
	if a.State != StateIdle && a.State != StateRunning {
		return false
	}
	return a.CurrentTasks < a.MaxConcurrentTasks
}

// Stale reports whether the last heartbeat is older than timeout.
func (a *Agent) Stale(timeout time.Duration) bool {
	return time.Since(a.LastHealthCheck) > timeout
}

// HealthSample is one heartbeat report from an agent process.
type HealthSample struct {
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage int64     `json:"memory_usage"`
	Error       string    `json:"error,omitempty"`
	ReportedAt  time.Time `json:"reported_at"`
}

type ListFilters struct {
	TenantID *uuid.UUID
	Type     *string
	State    *State
	Healthy  *bool
}
