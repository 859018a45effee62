package worker

import (
	"path/filepath"
	"testing"
	"time"

	"testrelay-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockManager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.lock")
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lm := NewLockManager(path, time.Minute, "test")
	lm.now = func() time.Time { return now }

	first, err := lm.AcquireLock("a")
	require.NoError(t, err)
	assert.Equal(t, "a", first.Owner)

	_, err = lm.AcquireLock("b")
	assert.ErrorIs(t, err, ErrLockHeld)

	now = now.Add(30 * time.Second)
	extended, err := lm.AcquireLock("a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, extended.ID)
	assert.Equal(t, now.Add(time.Minute), extended.ExpiresAt)

	assert.Error(t, lm.ReleaseLock(&models.LockInfo{Owner: "b"}))

	now = now.Add(2 * time.Minute)
	taken, err := lm.AcquireLock("b")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, taken.ID)

	require.NoError(t, lm.ReleaseLock(taken))
	require.NoError(t, lm.ReleaseLock(taken))
}
