package repository

import (
	"fmt"

	"testrelay-portal/dal"
	"testrelay-portal/models"
	"testrelay-portal/utils/logger"
)

// Repository implements RepositoryContainerInterface
type Repository struct {
	selection SelectionRepositoryInterface
}

// NewRepository builds the repositories for the configured selection store.
// db may be nil unless the dynamodb store is selected.
func NewRepository(cfg *models.Config, db dal.DatabaseClientInterface, log logger.Logger) (*Repository, error) {
	switch cfg.SelectionStore {
	case "dynamodb":
		if db == nil {
			return nil, fmt.Errorf("dynamodb selection store requires a database client")
		}
		return &Repository{selection: NewDynamoSelectionRepository(db, log)}, nil
	default:
		fileRepo, err := NewFileSelectionRepository(cfg.SelectionDir, log)
		if err != nil {
			return nil, err
		}
		return &Repository{selection: fileRepo}, nil
	}
}

// GetSelectionRepository returns the selection repository
func (r *Repository) GetSelectionRepository() SelectionRepositoryInterface {
	return r.selection
}
