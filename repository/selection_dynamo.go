package repository

import (
	"context"
	"errors"
	"fmt"

	"testrelay-portal/dal"
	"testrelay-portal/models"
	"testrelay-portal/utils/logger"
)

// SelectionTable is the unprefixed name of the selection table
const SelectionTable = "portal_selection"

// DynamoSelectionRepository stores selections in DynamoDB keyed by principal_id
type DynamoSelectionRepository struct {
	db     dal.DatabaseClientInterface
	table  string
	logger logger.Logger
}

func NewDynamoSelectionRepository(db dal.DatabaseClientInterface, log logger.Logger) *DynamoSelectionRepository {
	return &DynamoSelectionRepository{
		db:     db,
		table:  db.TableName(SelectionTable),
		logger: log,
	}
}

func (r *DynamoSelectionRepository) query(principalID string) models.QueryConfig {
	return models.QueryConfig{
		TableName: r.table,
		KeyName:   "principal_id",
		KeyValue:  principalID,
		KeyType:   models.StringType,
	}
}

func (r *DynamoSelectionRepository) GetSelection(ctx context.Context, principalID string) (*models.SelectionRecord, error) {
	if principalID == "" {
		return nil, errors.New("principal id is required")
	}

	var record models.SelectionRecord
	if err := r.db.GetItem(ctx, r.query(principalID), &record); err != nil {
		if errors.Is(err, dal.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get selection: %w", err)
	}
	return &record, nil
}

func (r *DynamoSelectionRepository) PutSelection(ctx context.Context, record *models.SelectionRecord) error {
	if record == nil || record.PrincipalID == "" {
		return errors.New("principal id is required")
	}

	if err := r.db.PutItem(ctx, r.table, record); err != nil {
		r.logger.Errorf("Failed to store selection: %v", err)
		return fmt.Errorf("failed to store selection: %w", err)
	}
	return nil
}

func (r *DynamoSelectionRepository) DeleteSelection(ctx context.Context, principalID string) error {
	if principalID == "" {
		return errors.New("principal id is required")
	}

	if err := r.db.DeleteItem(ctx, r.query(principalID)); err != nil {
		return fmt.Errorf("failed to delete selection: %w", err)
	}
	return nil
}
