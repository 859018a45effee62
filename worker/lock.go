package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"testrelay-portal/models"
	"testrelay-portal/utils"
)

// ErrLockHeld is returned when another live worker owns the status file.
var ErrLockHeld = errors.New("worker lock held by another instance")

// LockManager makes sure only one worker per portal and environment writes
// the shared status file. Locks expire unless they are extended.
type LockManager struct {
	path    string
	timeout time.Duration
	env     string
	mu      sync.Mutex
	now     func() time.Time
}

// NewLockManager creates a new lock manager
func NewLockManager(path string, timeout time.Duration, env string) *LockManager {
	return &LockManager{
		path:    path,
		timeout: timeout,
		env:     env,
		now:     time.Now,
	}
}

// AcquireLock takes the lock for ownerID, or extends it if ownerID already
// holds it. An expired lock is taken over.
func (lm *LockManager) AcquireLock(ownerID string) (*models.LockInfo, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	if existing, err := lm.readLockFile(); err == nil && now.Before(existing.ExpiresAt) {
		if existing.Owner != ownerID || existing.Environment != lm.env {
			return nil, fmt.Errorf("%w: %s until %s", ErrLockHeld, existing.Owner, existing.ExpiresAt.Format(time.RFC3339))
		}
		existing.ExpiresAt = now.Add(lm.timeout)
		if err := lm.writeLockFile(existing); err != nil {
			return nil, fmt.Errorf("failed to extend lock: %w", err)
		}
		return existing, nil
	}

	lockInfo := &models.LockInfo{
		ID:          "worker-lock-" + utils.GenerateUUID(),
		Owner:       ownerID,
		AcquiredAt:  now,
		ExpiresAt:   now.Add(lm.timeout),
		Environment: lm.env,
	}
	if err := lm.writeLockFile(lockInfo); err != nil {
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	return lockInfo, nil
}

// ReleaseLock removes the lock if lockInfo's owner still holds it
func (lm *LockManager) ReleaseLock(lockInfo *models.LockInfo) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	current, err := lm.readLockFile()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read lock file: %w", err)
	}
	if current.Owner != lockInfo.Owner {
		return fmt.Errorf("cannot release lock owned by %s", current.Owner)
	}
	if err := os.Remove(lm.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (lm *LockManager) readLockFile() (*models.LockInfo, error) {
	data, err := os.ReadFile(lm.path)
	if err != nil {
		return nil, err
	}

	var lockInfo models.LockInfo
	if err := json.Unmarshal(data, &lockInfo); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &lockInfo, nil
}

func (lm *LockManager) writeLockFile(lockInfo *models.LockInfo) error {
	data, err := json.MarshalIndent(lockInfo, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize lock info: %w", err)
	}
	return utils.WriteFileAtomic(lm.path, data, 0o644)
}
