package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"
)

// staleAfter is how long a status file may go without updates before the
// worker is considered stuck.
const staleAfter = 10 * time.Minute

type WorkerStatusService struct {
	statusFilePath string
	maxRetries     int
	logger         logger.Logger
	now            func() time.Time
}

func NewWorkerStatusService(config *models.Config, log logger.Logger) *WorkerStatusService {
	return &WorkerStatusService{
		statusFilePath: config.StatusFilePath(),
		maxRetries:     config.ProvisionMaxRetries,
		logger:         log,
		now:            time.Now,
	}
}

// getWorkerStatus reads worker status from the status file
func (s *WorkerStatusService) getWorkerStatus() (*models.WorkerStatus, error) {
	data, err := os.ReadFile(s.statusFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read worker status file: %w", err)
	}

	var status models.WorkerStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker status: %w", err)
	}

	return &status, nil
}

// GetWorkerStatus returns the last status written by the worker
func (s *WorkerStatusService) GetWorkerStatus(ctx context.Context) (*models.WorkerStatus, error) {
	s.logger.Debug("Getting worker status")
	return s.getWorkerStatus()
}

// IsWorkerHealthy checks if worker is in a healthy state
func (s *WorkerStatusService) IsWorkerHealthy() (bool, string, error) {
	status, err := s.getWorkerStatus()
	if err != nil {
		return false, "Cannot read worker status", err
	}

	if !status.Running {
		return false, "Worker is stopped", nil
	}

	if s.now().Sub(status.UpdatedAt) > staleAfter {
		return false, "Worker has not reported recently", nil
	}

	for name, job := range status.Jobs {
		if s.maxRetries > 0 && job.RetryCount >= s.maxRetries {
			return false, fmt.Sprintf("Job %s exhausted retries: %s", name, job.Error), nil
		}
	}
	for name, job := range status.Jobs {
		if job.Status == models.JobStatusFailed {
			return true, fmt.Sprintf("Job %s is retrying after failure", name), nil
		}
	}

	return true, "Worker is running normally", nil
}
