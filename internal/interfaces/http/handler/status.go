// Package handler serves the read-only status endpoint.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appintegration "github.com/Triple-C-BE/wimood/internal/application/integration"
)

// StatusProvider returns the current sync status
type StatusProvider interface {
	Snapshot() appintegration.StatusSnapshot
}

// StatusHandler serves the sync status. It never blocks on a running tick.
type StatusHandler struct {
	status StatusProvider
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(status StatusProvider) *StatusHandler {
	return &StatusHandler{status: status}
}

// RegisterRoutes mounts GET / and GET /status
func (h *StatusHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.GetStatus)
	rg.GET("/status", h.GetStatus)
}

// GetStatus returns the last product and order sync results
func (h *StatusHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Snapshot())
}
