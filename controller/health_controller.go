package controller

import (
	"net/http"

	"testrelay-portal/models"
	"testrelay-portal/services"
	"testrelay-portal/utils/logger"

	"github.com/gin-gonic/gin"
)

type HealthController struct {
	config  *models.Config
	bridge  services.SessionBridgeInterface
	workers services.WorkerStatusServiceInterface
	logger  logger.Logger
}

func NewHealthController(cfg *models.Config, bridge services.SessionBridgeInterface, workers services.WorkerStatusServiceInterface, log logger.Logger) *HealthController {
	return &HealthController{config: cfg, bridge: bridge, workers: workers, logger: log}
}

// Health handles GET /health
func (h *HealthController) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"version": h.config.AppVersion,
		"service": h.config.AppName,
		"portal":  h.config.Portal,
		"session": h.bridge.Session().State,
	}
	if h.config.WorkerEnabled {
		healthy, message, _ := h.workers.IsWorkerHealthy()
		body["worker"] = gin.H{"healthy": healthy, "message": message}
	}
	c.JSON(http.StatusOK, body)
}

// GetWorkerStatus handles GET /worker/status
// Returns the last recorded run of the token rotation and provisioning retry jobs.
func (h *HealthController) GetWorkerStatus(c *gin.Context) {
	status, err := h.workers.GetWorkerStatus(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to get worker status: %v", err)
		c.JSON(http.StatusInternalServerError, models.Failure(http.StatusInternalServerError,
			"Failed to retrieve worker status", "WorkerError", err.Error()))
		return
	}

	healthy, message, _ := h.workers.IsWorkerHealthy()
	if !healthy {
		resp := models.Failure(http.StatusServiceUnavailable, message, "WorkerUnhealthy", message)
		resp.Data = status
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, models.Success(http.StatusOK, message, status))
}
