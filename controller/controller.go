package controller

import (
	"context"
	"fmt"
	"net/http"

	"testrelay-portal/dal"
	"testrelay-portal/identity"
	"testrelay-portal/infrastructure"
	"testrelay-portal/middelware"
	"testrelay-portal/models"
	"testrelay-portal/repository"
	"testrelay-portal/services"
	"testrelay-portal/transport"
	"testrelay-portal/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Controller struct {
	Session  *SessionController
	Business *BusinessController
	GraphQL  *GraphQLController
	Health   *HealthController

	sessions *middelware.SessionMiddleware
	logging  *middelware.LoggingMiddleware
	cors     *middelware.CORSMiddleware
	config   *models.Config
}

// NewController wires storage, services and handlers for the configured
// portal. The returned service container must be closed on shutdown.
func NewController(ctx context.Context, cfg *models.Config, log logger.Logger) (*Controller, *services.Service, error) {
	var db dal.DatabaseClientInterface
	if cfg.SelectionStore == "dynamodb" {
		client, err := dal.NewDynamoDBClient(ctx, cfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize DynamoDB client: %w", err)
		}
		tables := cfg.Tables
		if len(tables) == 0 {
			tables = []string{repository.SelectionTable}
		}
		if _, err := infrastructure.EnsureTables(ctx, client, tables, log); err != nil {
			return nil, nil, fmt.Errorf("failed to set up tables: %w", err)
		}
		db = client
	}

	repo, err := repository.NewRepository(cfg, db, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	svc := services.NewService(ctx, repo, cfg, log)
	principals := NewPrincipalFactory(cfg, log)

	return New(ctx, cfg, svc, svc.GetHub(), svc.GetGraphQLClient(), principals, log), svc, nil
}

// New builds the controller from already constructed services.
func New(
	ctx context.Context,
	cfg *models.Config,
	container services.ServiceContainerInterface,
	hub SessionHub,
	forwarder Forwarder,
	principals PrincipalFactory,
	log logger.Logger,
) *Controller {
	bridge := container.GetSessionBridge()
	c := &Controller{
		Session:  NewSessionController(ctx, bridge, hub, principals, log),
		GraphQL:  NewGraphQLController(forwarder, log),
		Health:   NewHealthController(cfg, bridge, container.GetWorkerStatusService(), log),
		sessions: middelware.NewSessionMiddleware(bridge, log),
		logging:  middelware.NewLoggingMiddleware(log),
		cors:     middelware.NewCORSMiddleware(cfg),
		config:   cfg,
	}
	if business := container.GetBusinessService(); business != nil {
		c.Business = NewBusinessController(business, log)
	}
	return c
}

// NewPrincipalFactory returns a factory for refresh-token principals against
// the configured secure-token endpoint.
func NewPrincipalFactory(cfg *models.Config, log logger.Logger) PrincipalFactory {
	principalConfig := identity.TokenPrincipalConfig{
		TokenURL:   cfg.IdentityTokenURL,
		APIKey:     cfg.IdentityAPIKey,
		ExpirySkew: cfg.TokenExpirySkew,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Reader:     identity.NewClaimsReader(cfg.ClaimsNamespace),
	}
	return func(req models.SignInRequest) (identity.Principal, error) {
		return identity.NewTokenPrincipal(req.UID, req.RefreshToken, req.IDToken, principalConfig, log)
	}
}

// RegisterRoutes installs middleware and routes on r.
func (c *Controller) RegisterRoutes(r *gin.Engine, basePath string) {
	r.Use(c.logging.Recovery(), c.logging.RequestID(), c.logging.StructuredLogger(), c.cors.CORS())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group(basePath)
	v1.GET("/health", c.Health.Health)
	v1.GET("/worker/status", c.Health.GetWorkerStatus)

	session := v1.Group("/session")
	session.GET("", c.Session.GetSession)
	session.POST("", c.Session.SignIn)
	session.DELETE("", c.Session.SignOut)
	session.POST("/token", c.Session.GetToken)
	session.POST("/retry", c.Session.RetryProvisioning)

	if c.Business != nil {
		business := v1.Group("/business", c.sessions.RequireSession())
		business.GET("/selected", c.Business.GetSelected)
		business.PUT("/selected", c.Business.Select)
		business.DELETE("/selected", c.Business.Clear)
	}

	v1.POST("/graphql", c.sessions.RequireSession(), c.sessions.RequireRole(c.config.DefaultRole), c.GraphQL.Proxy)
}

var (
	_ services.ServiceContainerInterface = (*services.Service)(nil)
	_ SessionHub                         = (*identity.Hub)(nil)
	_ Forwarder                          = (*transport.GraphQLClient)(nil)
)
