package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"testrelay-portal/metrics"
	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/google/uuid"
	"github.com/robfig/cron"
)

// Job names as they appear in the status file and metrics
const (
	JobTokenRotation  = "token_rotation"
	JobProvisionRetry = "provision_retry"
)

// TokenRotator re-issues the session token ahead of expiry
type TokenRotator interface {
	Rotate(ctx context.Context, window time.Duration) (bool, error)
}

// ProvisioningRetrier exposes the session and the provisioning retry
type ProvisioningRetrier interface {
	Session() models.Session
	RetryProvisioning(ctx context.Context) error
}

// Worker runs the periodic session jobs on a cron scheduler
type Worker struct {
	config         *models.WorkerConfig
	rotationWindow time.Duration
	rotator        TokenRotator
	retrier        ProvisioningRetrier
	logger         logger.Logger

	cronJob  *cron.Cron
	status   *StatusManager
	locks    *LockManager
	lockInfo *models.LockInfo
	ownerID  string

	mu       sync.Mutex
	running  bool
	retryUID string
	retries  int

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewWorker(cfg *models.Config, rotator TokenRotator, retrier ProvisioningRetrier, log logger.Logger) (*Worker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if log == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		hostname = "localhost"
	}
	ownerID := fmt.Sprintf("worker-%s-%s", hostname, uuid.New().String()[:8])

	workerConfig := &models.WorkerConfig{
		RotationSchedule:       cfg.RotationSchedule,
		ProvisionRetrySchedule: cfg.ProvisionRetrySchedule,
		ProvisionMaxRetries:    cfg.ProvisionMaxRetries,
		JobTimeout:             30 * time.Second,
		StatusFilePath:         cfg.StatusFilePath(),
		Environment:            cfg.AppEnv,
	}
	if err := validateWorkerConfig(workerConfig); err != nil {
		return nil, fmt.Errorf("invalid worker configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		config:         workerConfig,
		rotationWindow: cfg.TokenRotationInterval,
		rotator:        rotator,
		retrier:        retrier,
		logger:         log.WithFields(map[string]interface{}{"worker": ownerID}),
		cronJob:        cron.New(),
		status:         NewStatusManager(workerConfig.StatusFilePath, ownerID, workerConfig.Environment),
		locks:          NewLockManager(workerConfig.StatusFilePath+".lock", 5*time.Minute, workerConfig.Environment),
		ownerID:        ownerID,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// Start schedules the jobs. It fails with ErrLockHeld when another worker
// already owns the status file.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker is already running")
	}
	select {
	case <-w.ctx.Done():
		return fmt.Errorf("worker context is cancelled, cannot start")
	default:
	}

	lockInfo, err := w.locks.AcquireLock(w.ownerID)
	if err != nil {
		return err
	}
	w.lockInfo = lockInfo

	if w.rotator != nil {
		if err := w.cronJob.AddFunc(w.config.RotationSchedule, func() { w.runJob(JobTokenRotation, w.rotateTokens) }); err != nil {
			return fmt.Errorf("failed to add rotation job: %w", err)
		}
	}
	if w.retrier != nil {
		if err := w.cronJob.AddFunc(w.config.ProvisionRetrySchedule, func() { w.runJob(JobProvisionRetry, w.retryProvisioning) }); err != nil {
			return fmt.Errorf("failed to add provisioning retry job: %w", err)
		}
	}

	w.cronJob.Start()
	w.running = true
	if err := w.status.SetRunning(true); err != nil {
		w.logger.Warnf("Failed to write worker status: %v", err)
	}

	w.logger.Infof("Session worker started (rotation %s, provisioning retry %s)",
		w.config.RotationSchedule, w.config.ProvisionRetrySchedule)
	return nil
}

// Stop stops the scheduler and releases the lock. Safe to call more than once.
func (w *Worker) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		w.cancel()
		if !w.running {
			return
		}
		w.cronJob.Stop()
		w.running = false

		if serr := w.status.SetRunning(false); serr != nil {
			w.logger.Warnf("Failed to write worker status: %v", serr)
		}
		if w.lockInfo != nil {
			err = w.locks.ReleaseLock(w.lockInfo)
		}
		w.logger.Info("Session worker stopped")
	})
	return err
}

// IsRunning returns whether the scheduler is running
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Status returns the in-memory job status
func (w *Worker) Status() models.WorkerStatus {
	return w.status.Snapshot()
}

type jobFunc func(ctx context.Context) (models.JobStatus, error)

// runJob runs fn with a timeout and records the outcome.
func (w *Worker) runJob(name string, fn jobFunc) {
	select {
	case <-w.ctx.Done():
		return
	default:
	}

	if _, err := w.locks.AcquireLock(w.ownerID); err != nil {
		w.logger.Warnf("Skipping %s: %v", name, err)
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.config.JobTimeout)
	defer cancel()

	if err := w.status.BeginJob(name); err != nil {
		w.logger.Warnf("Failed to write worker status: %v", err)
	}

	status, err := w.safeRun(ctx, name, fn)
	if err != nil {
		w.logger.Errorf("Job %s failed: %v", name, err)
	}
	if serr := w.status.FinishJob(name, status, err); serr != nil {
		w.logger.Warnf("Failed to write worker status: %v", serr)
	}
	metrics.RecordWorkerJob(name, string(status))
}

func (w *Worker) safeRun(ctx context.Context, name string, fn jobFunc) (status models.JobStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			status = models.JobStatusFailed
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}
	}()
	return fn(ctx)
}

func (w *Worker) rotateTokens(ctx context.Context) (models.JobStatus, error) {
	rotated, err := w.rotator.Rotate(ctx, w.rotationWindow)
	if err != nil {
		return models.JobStatusFailed, fmt.Errorf("token rotation failed: %w", err)
	}
	if !rotated {
		return models.JobStatusSkipped, nil
	}
	w.logger.Debug("Session token rotated")
	return models.JobStatusCompleted, nil
}

// retryProvisioning retries failed claims provisioning for the current
// principal, up to the configured number of attempts.
func (w *Worker) retryProvisioning(ctx context.Context) (models.JobStatus, error) {
	session := w.retrier.Session()

	w.mu.Lock()
	if session.Principal == nil || session.Principal.UID != w.retryUID {
		w.retryUID = ""
		w.retries = 0
	}
	if session.Principal == nil || session.State != models.SessionResolvingClaims ||
		!errors.Is(session.Err, models.ErrProvisioning) {
		w.mu.Unlock()
		return models.JobStatusSkipped, nil
	}
	if w.config.ProvisionMaxRetries > 0 && w.retries >= w.config.ProvisionMaxRetries {
		w.mu.Unlock()
		w.logger.Debugf("Provisioning retries exhausted for %s", session.Principal.UID)
		return models.JobStatusSkipped, nil
	}
	w.retryUID = session.Principal.UID
	w.retries++
	attempt := w.retries
	w.mu.Unlock()

	w.logger.Infof("Retrying claims provisioning for %s (attempt %d)", session.Principal.UID, attempt)
	if err := w.retrier.RetryProvisioning(ctx); err != nil {
		return models.JobStatusFailed, err
	}
	return models.JobStatusCompleted, nil
}

// validateWorkerConfig validates the worker configuration
func validateWorkerConfig(config *models.WorkerConfig) error {
	if config == nil {
		return fmt.Errorf("worker config cannot be nil")
	}
	if config.StatusFilePath == "" {
		return fmt.Errorf("status file path is required")
	}
	if config.ProvisionMaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if config.JobTimeout <= 0 {
		return fmt.Errorf("job timeout must be positive")
	}
	if _, err := cron.Parse(config.RotationSchedule); err != nil {
		return fmt.Errorf("invalid rotation schedule '%s': %w", config.RotationSchedule, err)
	}
	if _, err := cron.Parse(config.ProvisionRetrySchedule); err != nil {
		return fmt.Errorf("invalid provisioning retry schedule '%s': %w", config.ProvisionRetrySchedule, err)
	}
	return nil
}
