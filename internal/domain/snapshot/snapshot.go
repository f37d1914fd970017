package snapshot

import (
	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
)

// Snapshot is a point-in-time summary of one tenant's orchestration state.
// It is recomputed from the registry and queue on every read and never stored,
// so it cannot drift from source state.
type Snapshot struct {
	Agents   AgentSummary    `json:"agents"`
	Tasks    TaskSummary     `json:"tasks"`
	Capacity CapacitySummary `json:"capacity"`
}

type AgentSummary struct {
	Total              int     `json:"total"`
	Active             int     `json:"active"`
	Healthy            int     `json:"healthy"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

type TaskSummary struct {
	Queued         int                         `json:"queued"`
	Running        int                         `json:"running"`
	QueueBreakdown map[domaintask.Priority]int `json:"queue_breakdown"`
}

type CapacitySummary struct {
	MaxTasks          int `json:"max_tasks"`
	CurrentTasks      int `json:"current_tasks"`
	AvailableCapacity int `json:"available_capacity"`
}
