package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	metricssvc "github.com/agentprovision/orchestrator/internal/service/metrics"
)

func Register(rg *gin.RouterGroup, svc *metricssvc.Service) {
	rg.GET("/:tenantId", getSnapshot(svc))
}

func getSnapshot(svc *metricssvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := uuid.Parse(c.Param("tenantId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
			return
		}

		snap, err := svc.Snapshot(c.Request.Context(), tenantID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}
