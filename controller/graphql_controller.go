package controller

import (
	"context"
	"io"
	"net/http"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const maxQueryBytes = 1 << 20

// Forwarder sends a raw GraphQL body through the authenticated link
type Forwarder interface {
	Forward(ctx context.Context, body []byte) (int, []byte, error)
}

type GraphQLController struct {
	client Forwarder
	logger logger.Logger
}

func NewGraphQLController(client Forwarder, log logger.Logger) *GraphQLController {
	return &GraphQLController{client: client, logger: log}
}

// Proxy handles POST /graphql
// Sends the operation to the API with the session token and role headers. An expired token is refreshed and the operation resent once.
func (h *GraphQLController) Proxy(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxQueryBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.Failure(http.StatusBadRequest, "Failed to read request body", "ValidationError", err.Error()))
		return
	}
	if !gjson.ValidBytes(body) || gjson.GetBytes(body, "query").String() == "" {
		c.JSON(http.StatusBadRequest, models.Failure(http.StatusBadRequest, "Body must be a GraphQL operation", "ValidationError", "query is required"))
		return
	}

	status, raw, err := h.client.Forward(c.Request.Context(), body)
	if err != nil {
		h.logger.Warnf("GraphQL forward failed: %v", err)
		code, resp := sessionError(err)
		c.JSON(code, resp)
		return
	}
	c.Data(status, "application/json", raw)
}
