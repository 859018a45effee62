package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLogger implements the logger interface for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(args ...interface{}) {
	m.Called(args...)
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Info(args ...interface{}) {
	m.Called(args...)
}

func (m *MockLogger) Infof(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(args ...interface{}) {
	m.Called(args...)
}

func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Error(args ...interface{}) {
	m.Called(args...)
}

func (m *MockLogger) Errorf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Fatal(args ...interface{}) {
	m.Called(args...)
}

func (m *MockLogger) Fatalf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return m
}

func newMockLogger() *MockLogger {
	mockLogger := &MockLogger{}
	mockLogger.On("Debug", mock.Anything).Return().Maybe()
	mockLogger.On("Debugf", mock.AnythingOfType("string"), mock.Anything).Return().Maybe()
	mockLogger.On("Info", mock.Anything).Return().Maybe()
	mockLogger.On("Infof", mock.AnythingOfType("string"), mock.Anything).Return().Maybe()
	mockLogger.On("Warn", mock.Anything).Return().Maybe()
	mockLogger.On("Warnf", mock.AnythingOfType("string"), mock.Anything).Return().Maybe()
	mockLogger.On("Error", mock.Anything).Return().Maybe()
	mockLogger.On("Errorf", mock.AnythingOfType("string"), mock.Anything).Return().Maybe()
	return mockLogger
}

// MockProvisioner implements ClaimsProvisionerInterface for testing
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) Provision(ctx context.Context, idToken string, req models.ProvisionRequest) error {
	args := m.Called(ctx, idToken, req)
	return args.Error(0)
}

// MockSelectionRepository implements SelectionRepositoryInterface for testing
type MockSelectionRepository struct {
	mock.Mock
}

func (m *MockSelectionRepository) GetSelection(ctx context.Context, principalID string) (*models.SelectionRecord, error) {
	args := m.Called(ctx, principalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SelectionRecord), args.Error(1)
}

func (m *MockSelectionRepository) PutSelection(ctx context.Context, record *models.SelectionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSelectionRepository) DeleteSelection(ctx context.Context, principalID string) error {
	args := m.Called(ctx, principalID)
	return args.Error(0)
}

// MockBusinessRepository implements BusinessRepositoryInterface for testing
type MockBusinessRepository struct {
	mock.Mock
}

func (m *MockBusinessRepository) ListBusinesses(ctx context.Context) ([]models.Business, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Business), args.Error(1)
}

// makeToken signs a token carrying custom claims under the default namespace.
// A nil custom map produces a token without claims.
func makeToken(t *testing.T, custom map[string]interface{}, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "uid", "exp": exp.Unix(), "iat": time.Now().Unix()}
	if custom != nil {
		claims[models.DefaultClaimsNamespace] = custom
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func recruiterClaims() map[string]interface{} {
	return map[string]interface{}{
		models.ClaimAllowedRoles: []interface{}{"recruiter", "user"},
		models.ClaimDefaultRole:  "recruiter",
		models.ClaimUserID:       "uid-1",
		models.ClaimUserPK:       "42",
	}
}

// fakePrincipal hands out tokens. Forced refreshes call reissue when set.
type fakePrincipal struct {
	uid     string
	mu      sync.Mutex
	token   string
	reissue func() string
	gate    chan struct{}
	calls   int
	forced  int
	err     error
}

func (p *fakePrincipal) UID() string { return p.uid }

func (p *fakePrincipal) IDToken(ctx context.Context, force bool) (string, error) {
	p.mu.Lock()
	p.calls++
	gate := p.gate
	if force {
		p.forced++
	}
	p.mu.Unlock()

	if force && gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	if force && p.reissue != nil {
		p.token = p.reissue()
	}
	return p.token, nil
}

func (p *fakePrincipal) counts() (calls, forced int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, p.forced
}

// stateRecorder collects every state the store publishes
type stateRecorder struct {
	mu       sync.Mutex
	sessions []models.Session
}

func (r *stateRecorder) observe(s models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *stateRecorder) states() []models.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SessionState, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.State)
	}
	return out
}
