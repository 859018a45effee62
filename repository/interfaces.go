package repository

import (
	"context"

	"testrelay-portal/models"
)

// SelectionRepositoryInterface defines the contract for durable business selection storage
type SelectionRepositoryInterface interface {
	// GetSelection returns nil without error when nothing is stored.
	GetSelection(ctx context.Context, principalID string) (*models.SelectionRecord, error)
	PutSelection(ctx context.Context, record *models.SelectionRecord) error
	DeleteSelection(ctx context.Context, principalID string) error
}

// BusinessRepositoryInterface defines the contract for reading the caller's businesses
type BusinessRepositoryInterface interface {
	ListBusinesses(ctx context.Context) ([]models.Business, error)
}

// RepositoryContainerInterface defines the contract for the repository container
type RepositoryContainerInterface interface {
	GetSelectionRepository() SelectionRepositoryInterface
}
