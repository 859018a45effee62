package controller

import (
	"context"
	"sync"

	"testrelay-portal/identity"
	"testrelay-portal/models"
	"testrelay-portal/services"

	"github.com/stretchr/testify/mock"
)

// MockSessionBridge implements services.SessionBridgeInterface for testing
type MockSessionBridge struct {
	mock.Mock
	mu      sync.Mutex
	session models.Session
}

func (m *MockSessionBridge) Start(source identity.SessionSource) {}

func (m *MockSessionBridge) Close() {}

func (m *MockSessionBridge) OnSessionChange(ctx context.Context, p identity.Principal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockSessionBridge) GetToken(ctx context.Context) (models.TokenResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.TokenResult), args.Error(1)
}

func (m *MockSessionBridge) Refresh(ctx context.Context) (models.TokenResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.TokenResult), args.Error(1)
}

func (m *MockSessionBridge) RetryProvisioning(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessionBridge) Session() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *MockSessionBridge) Store() *services.SessionStore {
	return nil
}

func (m *MockSessionBridge) setSession(s models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
}

// MockBusinessService implements services.BusinessServiceInterface for testing
type MockBusinessService struct {
	mock.Mock
}

func (m *MockBusinessService) Selection() models.BusinessSelection {
	args := m.Called()
	return args.Get(0).(models.BusinessSelection)
}

func (m *MockBusinessService) Selected() *models.Business {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.Business)
}

func (m *MockBusinessService) Choose(ctx context.Context, business models.Business) error {
	args := m.Called(ctx, business)
	return args.Error(0)
}

func (m *MockBusinessService) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBusinessService) Close() {}

// MockWorkerStatusService implements services.WorkerStatusServiceInterface for testing
type MockWorkerStatusService struct {
	mock.Mock
}

func (m *MockWorkerStatusService) GetWorkerStatus(ctx context.Context) (*models.WorkerStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkerStatus), args.Error(1)
}

func (m *MockWorkerStatusService) IsWorkerHealthy() (bool, string, error) {
	args := m.Called()
	return args.Bool(0), args.String(1), args.Error(2)
}

// MockForwarder implements Forwarder for testing
type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, body []byte) (int, []byte, error) {
	args := m.Called(ctx, body)
	raw, _ := args.Get(1).([]byte)
	return args.Int(0), raw, args.Error(2)
}

// fakeHub records sign-in events
type fakeHub struct {
	mu        sync.Mutex
	signedIn  []identity.Principal
	signOuts  int
	onSignIn  func(identity.Principal)
	onSignOut func()
}

func (h *fakeHub) SignIn(p identity.Principal) {
	h.mu.Lock()
	h.signedIn = append(h.signedIn, p)
	h.mu.Unlock()
	if h.onSignIn != nil {
		h.onSignIn(p)
	}
}

func (h *fakeHub) SignOut() {
	h.mu.Lock()
	h.signOuts++
	h.mu.Unlock()
	if h.onSignOut != nil {
		h.onSignOut()
	}
}

type staticPrincipal struct {
	uid string
}

func (p *staticPrincipal) UID() string { return p.uid }

func (p *staticPrincipal) IDToken(ctx context.Context, force bool) (string, error) {
	return "", nil
}

// fakeContainer implements services.ServiceContainerInterface for testing
type fakeContainer struct {
	bridge   *MockSessionBridge
	business services.BusinessServiceInterface
	workers  *MockWorkerStatusService
}

func (f *fakeContainer) GetSessionBridge() services.SessionBridgeInterface { return f.bridge }

func (f *fakeContainer) GetBusinessService() services.BusinessServiceInterface { return f.business }

func (f *fakeContainer) GetWorkerStatusService() services.WorkerStatusServiceInterface {
	return f.workers
}
