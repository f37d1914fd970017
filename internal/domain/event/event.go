package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeTaskQueued    Type = "task_queued"
	TypeTaskAssigned  Type = "task_assigned"
	TypeTaskStarted   Type = "task_started"
	TypeTaskCompleted Type = "task_completed"
	TypeTaskFailed    Type = "task_failed"
	TypeTaskCancelled Type = "task_cancelled"

	TypeAgentRegistered   Type = "agent_registered"
	TypeAgentDeregistered Type = "agent_deregistered"
	TypeAgentHealthy      Type = "agent_healthy"
	TypeAgentUnhealthy    Type = "agent_unhealthy"
	TypeAgentPaused       Type = "agent_paused"
	TypeAgentResumed      Type = "agent_resumed"
	TypeAgentRescaled     Type = "agent_rescaled"
	TypeAgentHeartbeat    Type = "agent_heartbeat"
)

// Channel groups event types so a subscriber takes one subscription per domain.
type Channel string

const (
	ChannelTask  Channel = "task"
	ChannelAgent Channel = "agent"
)

var typeToChannel = map[Type]Channel{
	TypeTaskQueued:    ChannelTask,
	TypeTaskAssigned:  ChannelTask,
	TypeTaskStarted:   ChannelTask,
	TypeTaskCompleted: ChannelTask,
	TypeTaskFailed:    ChannelTask,
	TypeTaskCancelled: ChannelTask,

	TypeAgentRegistered:   ChannelAgent,
	TypeAgentDeregistered: ChannelAgent,
	TypeAgentHealthy:      ChannelAgent,
	TypeAgentUnhealthy:    ChannelAgent,
	TypeAgentPaused:       ChannelAgent,
	TypeAgentResumed:      ChannelAgent,
	TypeAgentRescaled:     ChannelAgent,
	TypeAgentHeartbeat:    ChannelAgent,
}

// ChannelFor returns the domain channel for a given event type.
func ChannelFor(t Type) Channel { return typeToChannel[t] }

// Event carries identifiers only, not full state.
// Subscribers fetch fresh state from the registry or task store.
type Event struct {
	Type      Type      `json:"type"`
	EntityID  uuid.UUID `json:"entity_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`
}

func New(eventType Type, entityID, tenantID uuid.UUID) Event {
	return Event{
		Type:      eventType,
		EntityID:  entityID,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
	}
}
