package services

import (
	"context"
	"net/http"

	"testrelay-portal/identity"
	"testrelay-portal/models"
	"testrelay-portal/repository"
	"testrelay-portal/transport"
	"testrelay-portal/utils/logger"
)

// Service implements ServiceContainerInterface
type Service struct {
	hub                 *identity.Hub
	sessionBridge       *SessionBridge
	businessService     *BusinessService
	workerStatusService *WorkerStatusService
	graphQLClient       *transport.GraphQLClient
}

// NewService creates a new service container with all dependencies injected.
// The business service only exists for the recruiter portal.
func NewService(
	ctx context.Context,
	repoContainer repository.RepositoryContainerInterface,
	config *models.Config,
	logger logger.Logger,
) *Service {
	httpClient := &http.Client{Timeout: config.HTTPTimeout}

	store := NewSessionStore()
	provisioner := NewClaimsProvisioner(config.ClaimsProvisionerURL, httpClient, logger)
	bridge := NewSessionBridge(config.BridgeConfig(), store, provisioner, config.TokenExpirySkew, logger)

	selector := transport.NewRoleSelector(config.Portal, config.DefaultRole, config.RoleHeader, config.BusinessHeader)
	link := transport.NewAuthLink(bridge, selector, config.ExpiredTokenMarker, http.DefaultTransport, logger)
	graphQLClient := transport.NewGraphQLClient(config.GraphQLURL, &http.Client{
		Transport: link,
		Timeout:   config.HTTPTimeout,
	}, logger)

	s := &Service{
		hub:                 identity.NewHub(logger),
		sessionBridge:       bridge,
		workerStatusService: NewWorkerStatusService(config, logger),
		graphQLClient:       graphQLClient,
	}

	if config.Portal == transport.VariantRecruiter {
		s.businessService = NewBusinessService(
			store,
			repoContainer.GetSelectionRepository(),
			repository.NewBusinessRepository(graphQLClient, logger),
			logger,
		)
		selector.Bind(s.businessService)
	}

	bridge.Start(s.hub)
	return s
}

// GetSessionBridge returns the session bridge interface
func (s *Service) GetSessionBridge() SessionBridgeInterface {
	return s.sessionBridge
}

// GetBusinessService returns the business service interface, or nil for the
// candidate portal
func (s *Service) GetBusinessService() BusinessServiceInterface {
	if s.businessService == nil {
		return nil
	}
	return s.businessService
}

// GetWorkerStatusService returns the worker status service interface
func (s *Service) GetWorkerStatusService() WorkerStatusServiceInterface {
	return s.workerStatusService
}

// GetHub returns the identity session source
func (s *Service) GetHub() *identity.Hub {
	return s.hub
}

// GetGraphQLClient returns the authenticated GraphQL client
func (s *Service) GetGraphQLClient() *transport.GraphQLClient {
	return s.graphQLClient
}

// Close stops the session bridge and the business service
func (s *Service) Close() {
	if s.businessService != nil {
		s.businessService.Close()
	}
	s.sessionBridge.Close()
}
