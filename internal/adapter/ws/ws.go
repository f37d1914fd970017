package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	portdispatcher "github.com/agentprovision/orchestrator/internal/port/dispatcher"
)

var _ portdispatcher.Dispatcher = (*Hub)(nil)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// writeWait bounds every write so a stalled peer cannot hold the hub lock
// and stall the publishers behind it. A peer that misses the deadline is
// dropped; it reconnects and lists its assignments.
const writeWait = 10 * time.Second

// Hub holds two kinds of websocket sessions: watcher connections (dashboards
// polling for events) and agent connections keyed by agent id, which receive
// their task assignments. It implements the dispatcher port.
type Hub struct {
	mu       sync.Mutex
	watchers map[*websocket.Conn]bool
	agents   map[uuid.UUID]*websocket.Conn
}

func NewHub() *Hub {
	return &Hub{
		watchers: make(map[*websocket.Conn]bool),
		agents:   make(map[uuid.UUID]*websocket.Conn),
	}
}

func (h *Hub) Register(rg *gin.RouterGroup) {
	rg.GET("", h.handleWatcher)
	rg.GET("/agents/:id", h.handleAgent)
}

func (h *Hub) handleWatcher(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.watchers[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.watchers, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) handleAgent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "agent_id", id, "error", err)
		return
	}

	h.mu.Lock()
	if old, ok := h.agents[id]; ok {
		old.Close()
	}
	h.agents[id] = conn
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.agents[id] == conn {
			delete(h.agents, id)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Dispatch pushes an assignment to the agent's live connection. An agent that
// is not connected is not an engine fault — the caller logs and moves on, and
// the runtime picks the task up when it reconnects and lists its assignments.
func (h *Hub) Dispatch(_ context.Context, t domaintask.Task, agentID uuid.UUID) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event": "task_assigned",
		"task":  t,
	})
	if err != nil {
		return fmt.Errorf("marshal assignment: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s not connected", agentID)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		delete(h.agents, agentID)
		return fmt.Errorf("write assignment: %w", err)
	}
	return nil
}

// Broadcast fans an event out to every watcher connection.
func (h *Hub) Broadcast(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("websocket broadcast marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.watchers {
		conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Error("websocket write failed, dropping watcher", "error", err)
			conn.Close()
			delete(h.watchers, conn)
		}
	}
}
