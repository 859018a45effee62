package models

import (
	"time"
)

// JobStatus represents the outcome of one background job run
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusSkipped   JobStatus = "skipped"
	JobStatusFailed    JobStatus = "failed"
)

// WorkerConfig holds configuration for the session worker
type WorkerConfig struct {
	RotationSchedule       string        `json:"rotation_schedule"`
	ProvisionRetrySchedule string        `json:"provision_retry_schedule"`
	ProvisionMaxRetries    int           `json:"provision_max_retries"`
	JobTimeout             time.Duration `json:"job_timeout"`
	StatusFilePath         string        `json:"status_file_path"`
	Environment            string        `json:"environment"`
}

// JobResult records the last run of a named job
type JobResult struct {
	Name       string        `json:"name"`
	Status     JobStatus     `json:"status"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    *time.Time    `json:"end_time,omitempty"`
	Duration   time.Duration `json:"duration"`
	RunCount   int           `json:"run_count"`
	RetryCount int           `json:"retry_count"`
	Error      string        `json:"error,omitempty"`
}

// WorkerStatus is the persisted snapshot of all jobs
type WorkerStatus struct {
	OwnerID     string                `json:"owner_id"`
	Environment string                `json:"environment"`
	Running     bool                  `json:"running"`
	Jobs        map[string]*JobResult `json:"jobs"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// LockInfo records which worker instance owns the session jobs
type LockInfo struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Environment string    `json:"environment"`
}
