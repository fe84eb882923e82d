package handlers

import (
	"net/http"
	"time"

	"regsync/models"
	"regsync/syncer"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	orchestrator *syncer.Orchestrator
	pinger       interface{ Ping() error }
}

// NewHandlers creates a new handlers instance.
func NewHandlers(orchestrator *syncer.Orchestrator, pinger interface{ Ping() error }) *Handlers {
	return &Handlers{orchestrator: orchestrator, pinger: pinger}
}

// SyncProperty triggers a sync for a single property.
func (h *Handlers) SyncProperty(c *gin.Context) {
	var req models.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.WithError(err).Warn("Invalid sync request body")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	if req.BuildingID == "" && req.ParcelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "building_id or parcel_id is required",
		})
		return
	}

	summary, err := h.orchestrator.SyncProperty(c.Request.Context(), req)
	if err != nil {
		log.WithError(err).Errorf("Property sync failed for building %q / parcel %q", req.BuildingID, req.ParcelID)
		c.JSON(http.StatusInternalServerError, summary)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RunSync triggers a batch run over the whole registry. Quick mode restricts
// the sources to the fast-moving dataset.
func (h *Handlers) RunSync(c *gin.Context) {
	quick := c.Query("mode") == "quick"

	totals, err := h.orchestrator.Run(c.Request.Context(), syncer.RunOptions{Quick: quick})
	if err != nil {
		log.WithError(err).Error("Batch sync run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"totals":  totals,
	})
}

// HealthCheck reports service and database liveness.
func (h *Handlers) HealthCheck(c *gin.Context) {
	if err := h.pinger.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"service":   "regsync",
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "regsync",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
