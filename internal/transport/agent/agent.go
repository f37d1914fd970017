package agent

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagent "github.com/agentprovision/orchestrator/internal/domain/agent"
	portregistry "github.com/agentprovision/orchestrator/internal/port/registry"
	agentsvc "github.com/agentprovision/orchestrator/internal/service/agent"
	controlsvc "github.com/agentprovision/orchestrator/internal/service/control"
	healthsvc "github.com/agentprovision/orchestrator/internal/service/health"
)

func Register(rg *gin.RouterGroup, svc *agentsvc.Service, control *controlsvc.Service, health *healthsvc.Service) {
	rg.POST("/register", registerAgent(svc))
	rg.GET("/", listAgents(svc))
	rg.GET("/:id", getAgent(svc))
	rg.DELETE("/:id", deregisterAgent(svc))
	rg.POST("/:id/heartbeat", heartbeat(health))
	rg.POST("/:id/pause", pauseAgent(control))
	rg.POST("/:id/resume", resumeAgent(control))
	rg.POST("/:id/rescale", rescaleAgent(control))
}

type registerReq struct {
	TenantID           uuid.UUID `json:"tenant_id" binding:"required"`
	Name               string    `json:"name" binding:"required"`
	Type               string    `json:"type" binding:"required"`
	MaxConcurrentTasks int       `json:"max_concurrent_tasks" binding:"required,min=1"`
}

func registerAgent(svc *agentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		a, err := svc.Register(c.Request.Context(), req.TenantID, req.Name, req.Type, req.MaxConcurrentTasks)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func listAgents(svc *agentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters domainagent.ListFilters

		if v := c.Query("tenant_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant_id"})
				return
			}
			filters.TenantID = &id
		}
		if v := c.Query("type"); v != "" {
			filters.Type = &v
		}
		if v := c.Query("state"); v != "" {
			s := domainagent.State(v)
			filters.State = &s
		}

		agents, err := svc.List(c.Request.Context(), filters)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if agents == nil {
			agents = []domainagent.Agent{}
		}
		c.JSON(http.StatusOK, agents)
	}
}

func getAgent(svc *agentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		a, err := svc.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, a)
	}
}

func deregisterAgent(svc *agentsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		if err := svc.Deregister(c.Request.Context(), id); err != nil {
			switch {
			case errors.Is(err, portregistry.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, portregistry.ErrAgentBusy):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type heartbeatReq struct {
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage int64   `json:"memory_usage"`
	Error       string  `json:"error"`
}

func heartbeat(health *healthsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req heartbeatReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sample := domainagent.HealthSample{
			CPUUsage:    req.CPUUsage,
			MemoryUsage: req.MemoryUsage,
			Error:       req.Error,
		}
		if err := health.ReportHeartbeat(c.Request.Context(), id, sample); err != nil {
			if errors.Is(err, portregistry.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func pauseAgent(control *controlsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		if err := control.Pause(c.Request.Context(), id); err != nil {
			if errors.Is(err, portregistry.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "paused"})
	}
}

func resumeAgent(control *controlsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		if err := control.Resume(c.Request.Context(), id); err != nil {
			if errors.Is(err, portregistry.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "resumed"})
	}
}

type rescaleReq struct {
	MaxConcurrentTasks int `json:"max_concurrent_tasks" binding:"required"`
}

func rescaleAgent(control *controlsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req rescaleReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := control.Rescale(c.Request.Context(), id, req.MaxConcurrentTasks); err != nil {
			switch {
			case errors.Is(err, portregistry.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, portregistry.ErrInvalidCapacity):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "rescaled"})
	}
}
