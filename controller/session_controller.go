package controller

import (
	"context"
	"net/http"

	"testrelay-portal/identity"
	"testrelay-portal/models"
	"testrelay-portal/services"
	"testrelay-portal/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// SessionHub is the identity source the gateway signs principals into
type SessionHub interface {
	SignIn(p identity.Principal)
	SignOut()
}

// PrincipalFactory builds a principal from sign-in credentials
type PrincipalFactory func(req models.SignInRequest) (identity.Principal, error)

type SessionController struct {
	ctx          context.Context
	bridge       services.SessionBridgeInterface
	hub          SessionHub
	newPrincipal PrincipalFactory
	validator    *validator.Validate
	logger       logger.Logger
}

func NewSessionController(ctx context.Context, bridge services.SessionBridgeInterface, hub SessionHub, newPrincipal PrincipalFactory, log logger.Logger) *SessionController {
	return &SessionController{
		ctx:          ctx,
		bridge:       bridge,
		hub:          hub,
		newPrincipal: newPrincipal,
		validator:    validator.New(),
		logger:       log,
	}
}

// GetSession handles GET /session
// Returns the session state, principal and claims. The token itself is never included.
func (h *SessionController) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, models.Success(http.StatusOK, "Session retrieved", h.bridge.Session().View()))
}

// SignIn handles POST /session
// Starts a session for the principal. Claims are resolved in the background; poll GET /session until it is RESOLVED.
func (h *SessionController) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Failure(http.StatusBadRequest, "Invalid request body", "ValidationError", err.Error()))
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.Failure(http.StatusBadRequest, "Validation failed", "ValidationError", formatValidationErrors(err)))
		return
	}

	principal, err := h.newPrincipal(req)
	if err != nil {
		h.logger.Errorf("Failed to create principal: %v", err)
		c.JSON(http.StatusBadRequest, models.Failure(http.StatusBadRequest, "Invalid credentials", "AuthenticationError", err.Error()))
		return
	}

	h.hub.SignIn(principal)
	h.logger.Infof("Principal %s signed in", req.UID)
	c.JSON(http.StatusAccepted, models.Success(http.StatusAccepted, "Session accepted", h.bridge.Session().View()))
}

// SignOut handles DELETE /session
func (h *SessionController) SignOut(c *gin.Context) {
	h.hub.SignOut()
	c.JSON(http.StatusOK, models.Success(http.StatusOK, "Signed out", h.bridge.Session().View()))
}

// GetToken handles POST /session/token
// Returns the cached token when it is valid, otherwise forces a refresh. Never returns a token without claims.
func (h *SessionController) GetToken(c *gin.Context) {
	result, err := h.bridge.GetToken(c.Request.Context())
	if err != nil {
		code, resp := sessionError(err)
		c.JSON(code, resp)
		return
	}
	c.JSON(http.StatusOK, models.Success(http.StatusOK, "Token issued", result))
}

// RetryProvisioning handles POST /session/retry
// Clears a failed provisioning attempt and resolves the session again.
func (h *SessionController) RetryProvisioning(c *gin.Context) {
	if err := h.bridge.RetryProvisioning(c.Request.Context()); err != nil {
		code, resp := sessionError(err)
		c.JSON(code, resp)
		return
	}
	c.JSON(http.StatusOK, models.Success(http.StatusOK, "Session resolved", h.bridge.Session().View()))
}
