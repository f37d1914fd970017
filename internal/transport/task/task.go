package task

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domaintask "github.com/agentprovision/orchestrator/internal/domain/task"
	porttaskstore "github.com/agentprovision/orchestrator/internal/port/taskstore"
	tasksvc "github.com/agentprovision/orchestrator/internal/service/task"
)

func Register(rg *gin.RouterGroup, svc *tasksvc.Service) {
	rg.POST("/", submitTask(svc))
	rg.GET("/", listTasks(svc))
	rg.GET("/:id", getTask(svc))
	rg.DELETE("/:id", cancelTask(svc))
	rg.POST("/:id/start", startTask(svc))
	rg.POST("/:id/outcome", reportOutcome(svc))
}

type submitReq struct {
	TenantID   uuid.UUID           `json:"tenant_id" binding:"required"`
	AgentType  string              `json:"agent_type" binding:"required"`
	PayloadRef string              `json:"payload_ref" binding:"required"`
	Priority   domaintask.Priority `json:"priority" binding:"required"`
}

func submitTask(svc *tasksvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		t, err := svc.Submit(c.Request.Context(), req.TenantID, req.AgentType, req.PayloadRef, req.Priority)
		if err != nil {
			if errors.Is(err, tasksvc.ErrInvalidPriority) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func listTasks(svc *tasksvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters domaintask.ListFilters

		if v := c.Query("tenant_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant_id"})
				return
			}
			filters.TenantID = &id
		}
		if v := c.Query("status"); v != "" {
			s := domaintask.Status(v)
			filters.Status = &s
		}
		if v := c.Query("priority"); v != "" {
			p := domaintask.Priority(v)
			filters.Priority = &p
		}
		if v := c.Query("assigned_to"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assigned_to"})
				return
			}
			filters.AssignedTo = &id
		}

		tasks, err := svc.List(c.Request.Context(), filters)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if tasks == nil {
			tasks = []domaintask.Task{}
		}
		c.JSON(http.StatusOK, tasks)
	}
}

func getTask(svc *tasksvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		d, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func cancelTask(svc *tasksvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		t, err := svc.Cancel(c.Request.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, porttaskstore.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, tasksvc.ErrNotQueued):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

func startTask(svc *tasksvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		t, err := svc.Start(c.Request.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, porttaskstore.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, tasksvc.ErrNotInFlight):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

type outcomeReq struct {
	Success    *bool  `json:"success" binding:"required"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error"`
}

func reportOutcome(svc *tasksvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req outcomeReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		t, err := svc.ReportOutcome(c.Request.Context(), id, *req.Success, req.DurationMs, req.Error)
		if err != nil {
			switch {
			case errors.Is(err, porttaskstore.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.Is(err, tasksvc.ErrNotInFlight):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, t)
	}
}
