package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"testrelay-portal/models"
	"testrelay-portal/utils"
)

// StatusManager keeps the worker status in memory and mirrors it to a file
// other processes can read.
type StatusManager struct {
	path   string
	mu     sync.Mutex
	status models.WorkerStatus
	now    func() time.Time
}

// NewStatusManager creates a new status manager
func NewStatusManager(path, ownerID, env string) *StatusManager {
	return &StatusManager{
		path: path,
		status: models.WorkerStatus{
			OwnerID:     ownerID,
			Environment: env,
			Jobs:        make(map[string]*models.JobResult),
		},
		now: time.Now,
	}
}

// SetRunning records whether the scheduler is running.
func (sm *StatusManager) SetRunning(running bool) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.status.Running = running
	return sm.saveLocked()
}

// BeginJob marks name as running.
func (sm *StatusManager) BeginJob(name string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	job := sm.jobLocked(name)
	job.Status = models.JobStatusRunning
	job.StartTime = sm.now()
	job.EndTime = nil
	return sm.saveLocked()
}

// FinishJob records the outcome of a run. Failures are counted in
// RetryCount until a run completes; skipped runs leave the count alone.
func (sm *StatusManager) FinishJob(name string, status models.JobStatus, jobErr error) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	job := sm.jobLocked(name)
	end := sm.now()
	job.Status = status
	job.EndTime = &end
	job.Duration = end.Sub(job.StartTime)
	job.RunCount++
	switch status {
	case models.JobStatusFailed:
		job.RetryCount++
		job.Error = ""
		if jobErr != nil {
			job.Error = jobErr.Error()
		}
	case models.JobStatusCompleted:
		job.RetryCount = 0
		job.Error = ""
	}
	return sm.saveLocked()
}

// Snapshot returns a copy of the current status.
func (sm *StatusManager) Snapshot() models.WorkerStatus {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	out := sm.status
	out.Jobs = make(map[string]*models.JobResult, len(sm.status.Jobs))
	for name, job := range sm.status.Jobs {
		j := *job
		out.Jobs[name] = &j
	}
	return out
}

// LoadStatus reads the status file written by any worker instance.
func (sm *StatusManager) LoadStatus() (*models.WorkerStatus, error) {
	data, err := os.ReadFile(sm.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var status models.WorkerStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

func (sm *StatusManager) jobLocked(name string) *models.JobResult {
	job, ok := sm.status.Jobs[name]
	if !ok {
		job = &models.JobResult{Name: name, Status: models.JobStatusIdle}
		sm.status.Jobs[name] = job
	}
	return job
}

func (sm *StatusManager) saveLocked() error {
	sm.status.UpdatedAt = sm.now().UTC()

	data, err := json.MarshalIndent(sm.status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := utils.WriteFileAtomic(sm.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return nil
}
