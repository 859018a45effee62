package worker

import (
	"errors"
	"fmt"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"
)

// Service wraps the session worker for main
type Service struct {
	worker *Worker
	logger logger.Logger
}

// NewService creates a new worker service
func NewService(cfg *models.Config, rotator TokenRotator, retrier ProvisioningRetrier, log logger.Logger) (*Service, error) {
	worker, err := NewWorker(cfg, rotator, retrier, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create session worker: %w", err)
	}
	return &Service{worker: worker, logger: log}, nil
}

// StartInBackground starts the scheduler. A worker that loses the lock to
// another instance logs and stays idle.
func (s *Service) StartInBackground() error {
	s.logger.Info("Starting session worker")
	if err := s.worker.Start(); err != nil {
		if errors.Is(err, ErrLockHeld) {
			s.logger.Warnf("Session worker not started: %v", err)
			return nil
		}
		return err
	}
	return nil
}

// Stop stops the session worker
func (s *Service) Stop() error {
	s.logger.Info("Stopping session worker")
	return s.worker.Stop()
}

// GetStatus returns the worker's job status
func (s *Service) GetStatus() models.WorkerStatus {
	return s.worker.Status()
}

// IsRunning reports whether the scheduler is running
func (s *Service) IsRunning() bool {
	return s.worker.IsRunning()
}
