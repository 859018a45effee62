package services

import (
	"context"

	"testrelay-portal/identity"
	"testrelay-portal/models"
)

// ClaimsProvisionerInterface defines the contract for the remote claims provisioner
type ClaimsProvisionerInterface interface {
	Provision(ctx context.Context, idToken string, req models.ProvisionRequest) error
}

// SessionBridgeInterface defines the contract for the session bridge
type SessionBridgeInterface interface {
	Start(source identity.SessionSource)
	Close()
	OnSessionChange(ctx context.Context, p identity.Principal) error
	GetToken(ctx context.Context) (models.TokenResult, error)
	Refresh(ctx context.Context) (models.TokenResult, error)
	RetryProvisioning(ctx context.Context) error
	Session() models.Session
	Store() *SessionStore
}

// BusinessServiceInterface defines the contract for the business selection service
type BusinessServiceInterface interface {
	Selection() models.BusinessSelection
	Selected() *models.Business
	Choose(ctx context.Context, business models.Business) error
	Clear(ctx context.Context) error
	Close()
}

// WorkerStatusServiceInterface defines the contract for background worker reporting
type WorkerStatusServiceInterface interface {
	GetWorkerStatus(ctx context.Context) (*models.WorkerStatus, error)
	IsWorkerHealthy() (bool, string, error)
}

// ServiceContainerInterface defines the main service container contract
type ServiceContainerInterface interface {
	GetSessionBridge() SessionBridgeInterface
	GetBusinessService() BusinessServiceInterface
	GetWorkerStatusService() WorkerStatusServiceInterface
}
