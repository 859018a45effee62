package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MockRotator struct {
	mock.Mock
}

func (m *MockRotator) Rotate(ctx context.Context, window time.Duration) (bool, error) {
	args := m.Called(ctx, window)
	return args.Bool(0), args.Error(1)
}

type fakeRetrier struct {
	mu      sync.Mutex
	session models.Session
	err     error
	calls   int
}

func (f *fakeRetrier) Session() models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeRetrier) RetryProvisioning(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func failedSession(uid string) models.Session {
	return models.Session{
		State:     models.SessionResolvingClaims,
		Principal: &models.Principal{UID: uid},
		Loading:   true,
		Err:       errors.Join(models.ErrProvisioning, errors.New("internal")),
	}
}

type WorkerTestSuite struct {
	suite.Suite
	cfg     *models.Config
	rotator *MockRotator
	retrier *fakeRetrier
	worker  *Worker
}

func (suite *WorkerTestSuite) SetupTest() {
	suite.cfg = &models.Config{
		AppEnv:                 "test",
		Portal:                 "recruiter",
		RotationSchedule:       "@every 1m",
		ProvisionRetrySchedule: "@every 30s",
		ProvisionMaxRetries:    2,
		TokenRotationInterval:  10 * time.Minute,
		WorkerStatusFile:       filepath.Join(suite.T().TempDir(), "status.json"),
	}
	suite.rotator = new(MockRotator)
	suite.retrier = &fakeRetrier{}

	w, err := NewWorker(suite.cfg, suite.rotator, suite.retrier, logger.Nop())
	suite.Require().NoError(err)
	suite.worker = w
}

func (suite *WorkerTestSuite) TearDownTest() {
	_ = suite.worker.Stop()
}

func TestWorkerTestSuite(t *testing.T) {
	suite.Run(t, new(WorkerTestSuite))
}

func (suite *WorkerTestSuite) TestRotationCompleted() {
	suite.rotator.On("Rotate", mock.Anything, 10*time.Minute).Return(true, nil).Once()

	suite.worker.runJob(JobTokenRotation, suite.worker.rotateTokens)

	job := suite.worker.Status().Jobs[JobTokenRotation]
	suite.Require().NotNil(job)
	suite.Equal(models.JobStatusCompleted, job.Status)
	suite.Equal(1, job.RunCount)
	suite.NotNil(job.EndTime)
	suite.rotator.AssertExpectations(suite.T())
}

func (suite *WorkerTestSuite) TestRotationSkippedWhenTokenFresh() {
	suite.rotator.On("Rotate", mock.Anything, mock.Anything).Return(false, nil).Once()

	suite.worker.runJob(JobTokenRotation, suite.worker.rotateTokens)

	suite.Equal(models.JobStatusSkipped, suite.worker.Status().Jobs[JobTokenRotation].Status)
}

func (suite *WorkerTestSuite) TestRotationFailureCountsRetries() {
	suite.rotator.On("Rotate", mock.Anything, mock.Anything).Return(false, errors.New("offline")).Twice()
	suite.rotator.On("Rotate", mock.Anything, mock.Anything).Return(true, nil).Once()

	suite.worker.runJob(JobTokenRotation, suite.worker.rotateTokens)
	suite.worker.runJob(JobTokenRotation, suite.worker.rotateTokens)
	job := suite.worker.Status().Jobs[JobTokenRotation]
	suite.Equal(models.JobStatusFailed, job.Status)
	suite.Equal(2, job.RetryCount)
	suite.Contains(job.Error, "offline")

	suite.worker.runJob(JobTokenRotation, suite.worker.rotateTokens)
	job = suite.worker.Status().Jobs[JobTokenRotation]
	suite.Zero(job.RetryCount)
	suite.Empty(job.Error)
}

func (suite *WorkerTestSuite) TestProvisionRetrySkippedWithoutFailure() {
	suite.retrier.session = models.Session{State: models.SessionResolved, Principal: &models.Principal{UID: "uid-1"}}

	suite.worker.runJob(JobProvisionRetry, suite.worker.retryProvisioning)

	suite.Equal(models.JobStatusSkipped, suite.worker.Status().Jobs[JobProvisionRetry].Status)
	suite.Zero(suite.retrier.calls)
}

func (suite *WorkerTestSuite) TestProvisionRetryIsCapped() {
	suite.retrier.session = failedSession("uid-1")
	suite.retrier.err = models.ErrProvisioning

	for i := 0; i < 4; i++ {
		suite.worker.runJob(JobProvisionRetry, suite.worker.retryProvisioning)
	}

	suite.Equal(2, suite.retrier.calls)
	job := suite.worker.Status().Jobs[JobProvisionRetry]
	suite.Equal(models.JobStatusSkipped, job.Status)
	suite.Equal(2, job.RetryCount)
}

func (suite *WorkerTestSuite) TestProvisionRetryResetsForNewPrincipal() {
	suite.retrier.session = failedSession("uid-1")
	suite.retrier.err = models.ErrProvisioning
	for i := 0; i < 3; i++ {
		suite.worker.runJob(JobProvisionRetry, suite.worker.retryProvisioning)
	}
	suite.Equal(2, suite.retrier.calls)

	suite.retrier.session = failedSession("uid-2")
	suite.retrier.err = nil
	suite.worker.runJob(JobProvisionRetry, suite.worker.retryProvisioning)

	suite.Equal(3, suite.retrier.calls)
	suite.Equal(models.JobStatusCompleted, suite.worker.Status().Jobs[JobProvisionRetry].Status)
}

func (suite *WorkerTestSuite) TestStartWritesStatusAndStopReleasesLock() {
	suite.Require().NoError(suite.worker.Start())
	suite.True(suite.worker.IsRunning())
	suite.Error(suite.worker.Start())

	persisted, err := suite.worker.status.LoadStatus()
	suite.Require().NoError(err)
	suite.True(persisted.Running)
	suite.Equal(suite.worker.ownerID, persisted.OwnerID)

	suite.NoError(suite.worker.Stop())
	suite.NoError(suite.worker.Stop())
	suite.False(suite.worker.IsRunning())

	persisted, err = suite.worker.status.LoadStatus()
	suite.Require().NoError(err)
	suite.False(persisted.Running)

	other, err := NewWorker(suite.cfg, suite.rotator, suite.retrier, logger.Nop())
	suite.Require().NoError(err)
	suite.NoError(other.Start())
	suite.NoError(other.Stop())
}

func (suite *WorkerTestSuite) TestSecondInstanceIsLockedOut() {
	suite.Require().NoError(suite.worker.Start())

	other, err := NewWorker(suite.cfg, suite.rotator, suite.retrier, logger.Nop())
	suite.Require().NoError(err)
	err = other.Start()

	suite.ErrorIs(err, ErrLockHeld)
	suite.False(other.IsRunning())

	service := &Service{worker: other, logger: logger.Nop()}
	suite.NoError(service.StartInBackground())
	suite.False(service.IsRunning())
}

func (suite *WorkerTestSuite) TestPanickingJobIsRecorded() {
	suite.worker.runJob("broken", func(ctx context.Context) (models.JobStatus, error) {
		panic("boom")
	})

	job := suite.worker.Status().Jobs["broken"]
	suite.Equal(models.JobStatusFailed, job.Status)
	suite.Contains(job.Error, "boom")
}

func TestNewWorker_Validation(t *testing.T) {
	_, err := NewWorker(nil, nil, nil, logger.Nop())
	assert.Error(t, err)

	cfg := &models.Config{
		RotationSchedule:       "not a schedule",
		ProvisionRetrySchedule: "@every 30s",
		WorkerStatusFile:       filepath.Join(t.TempDir(), "status.json"),
	}
	_, err = NewWorker(cfg, nil, nil, logger.Nop())
	assert.Error(t, err)

	cfg.RotationSchedule = "0 */5 * * * *"
	cfg.ProvisionMaxRetries = -1
	_, err = NewWorker(cfg, nil, nil, logger.Nop())
	assert.Error(t, err)

	cfg.ProvisionMaxRetries = 0
	w, err := NewWorker(cfg, nil, nil, logger.Nop())
	require.NoError(t, err)
	assert.NotEmpty(t, w.ownerID)
}
