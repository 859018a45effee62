package repository

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"testrelay-portal/models"
	"testrelay-portal/utils"
	"testrelay-portal/utils/logger"

	"golang.org/x/crypto/blake2b"
)

// FileSelectionRepository keeps one JSON document per principal in a local
// directory. File names are hashes of the principal id.
type FileSelectionRepository struct {
	dir    string
	mu     sync.Mutex
	logger logger.Logger
}

func NewFileSelectionRepository(dir string, log logger.Logger) (*FileSelectionRepository, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("selection directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create selection directory: %w", err)
	}
	return &FileSelectionRepository{
		dir:    dir,
		logger: log,
	}, nil
}

func (r *FileSelectionRepository) path(principalID string) string {
	sum := blake2b.Sum256([]byte(principalID))
	return filepath.Join(r.dir, "selection-"+hex.EncodeToString(sum[:16])+".json")
}

func (r *FileSelectionRepository) GetSelection(ctx context.Context, principalID string) (*models.SelectionRecord, error) {
	if principalID == "" {
		return nil, errors.New("principal id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path(principalID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read selection: %w", err)
	}

	var record models.SelectionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		r.logger.Warnf("Ignoring corrupt selection file for %s: %v", principalID, err)
		return nil, nil
	}
	if record.PrincipalID != principalID {
		return nil, nil
	}
	return &record, nil
}

func (r *FileSelectionRepository) PutSelection(ctx context.Context, record *models.SelectionRecord) error {
	if record == nil || record.PrincipalID == "" {
		return errors.New("principal id is required")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize selection: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return utils.WriteFileAtomic(r.path(record.PrincipalID), data, 0o600)
}

func (r *FileSelectionRepository) DeleteSelection(ctx context.Context, principalID string) error {
	if principalID == "" {
		return errors.New("principal id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(principalID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove selection: %w", err)
	}
	return nil
}
