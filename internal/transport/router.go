package transport

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/agentprovision/orchestrator/internal/adapter/ws"
	"github.com/agentprovision/orchestrator/internal/domain/event"
	porteventbus "github.com/agentprovision/orchestrator/internal/port/eventbus"
	agentsvc "github.com/agentprovision/orchestrator/internal/service/agent"
	controlsvc "github.com/agentprovision/orchestrator/internal/service/control"
	healthsvc "github.com/agentprovision/orchestrator/internal/service/health"
	metricssvc "github.com/agentprovision/orchestrator/internal/service/metrics"
	tasksvc "github.com/agentprovision/orchestrator/internal/service/task"

	agenthandler "github.com/agentprovision/orchestrator/internal/transport/agent"
	metricshandler "github.com/agentprovision/orchestrator/internal/transport/metrics"
	taskhandler "github.com/agentprovision/orchestrator/internal/transport/task"
)

func NewRouter(
	ctx context.Context,
	agentSvc *agentsvc.Service,
	controlSvc *controlsvc.Service,
	healthSvc *healthsvc.Service,
	taskSvc *tasksvc.Service,
	metricsSvc *metricssvc.Service,
	hub *ws.Hub,
	bus porteventbus.Bus,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())

	api := r.Group("/api")

	agenthandler.Register(api.Group("/agents"), agentSvc, controlSvc, healthSvc)
	taskhandler.Register(api.Group("/tasks"), taskSvc)
	metricshandler.Register(api.Group("/metrics"), metricsSvc)

	hub.Register(api.Group("/ws"))

	// Bridge: every lifecycle event is forwarded to WS watchers; event.Type in
	// the payload lets the client filter. AgentHeartbeat is excluded because it
	// carries no actionable state for browsers.
	for _, ch := range []event.Channel{event.ChannelTask, event.ChannelAgent} {
		if _, err := bus.Subscribe(ctx, ch, func(_ context.Context, e event.Event) {
			if e.Type == event.TypeAgentHeartbeat {
				return
			}
			hub.Broadcast(e)
		}); err != nil {
			slog.Error("failed to subscribe channel to WS hub", "channel", ch, "error", err)
		}
	}

	return r
}
