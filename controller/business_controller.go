package controller

import (
	"errors"
	"net/http"

	"testrelay-portal/models"
	"testrelay-portal/services"
	"testrelay-portal/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type BusinessController struct {
	service   services.BusinessServiceInterface
	validator *validator.Validate
	logger    logger.Logger
}

func NewBusinessController(service services.BusinessServiceInterface, log logger.Logger) *BusinessController {
	return &BusinessController{
		service:   service,
		validator: validator.New(),
		logger:    log,
	}
}

// GetSelected handles GET /business/selected
func (h *BusinessController) GetSelected(c *gin.Context) {
	c.JSON(http.StatusOK, models.Success(http.StatusOK, "Selection retrieved", h.service.Selection()))
}

// Select handles PUT /business/selected
// Persists the business the recruiter acts on behalf of. Requests sent through the gateway carry it from now on.
func (h *BusinessController) Select(c *gin.Context) {
	var req models.SelectBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Failure(http.StatusBadRequest, "Invalid request body", "ValidationError", err.Error()))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Failure(http.StatusBadRequest, "Validation failed", "ValidationError", formatValidationErrors(err)))
		return
	}

	if err := h.service.Choose(c.Request.Context(), req.Business); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Success(http.StatusOK, "Business selected", h.service.Selection()))
}

// Clear handles DELETE /business/selected
func (h *BusinessController) Clear(c *gin.Context) {
	if err := h.service.Clear(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Success(http.StatusOK, "Selection cleared", h.service.Selection()))
}

func (h *BusinessController) respondError(c *gin.Context, err error) {
	if errors.Is(err, models.ErrNoSession) {
		code, resp := sessionError(err)
		c.JSON(code, resp)
		return
	}
	h.logger.Errorf("Business selection failed: %v", err)
	c.JSON(http.StatusInternalServerError, models.Failure(http.StatusInternalServerError,
		"Failed to store business selection", "StorageError", err.Error()))
}
