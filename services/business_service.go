package services

import (
	"context"
	"sync"
	"time"

	"testrelay-portal/models"
	"testrelay-portal/repository"
	"testrelay-portal/utils/logger"
)

// BusinessService tracks which business a recruiter acts on behalf of. It
// follows the session: a new principal hydrates the persisted choice, a
// resolved session without a choice picks a default, sign-out clears it.
type BusinessService struct {
	selections repository.SelectionRepositoryInterface
	businesses repository.BusinessRepositoryInterface
	logger     logger.Logger
	timeout    time.Duration

	mu       sync.RWMutex
	uid      string
	selected *models.Business
	loading  bool
	gen      uint64

	// tail is closed when the last queued background task finishes. Tasks
	// run one at a time in the order the session changes were observed.
	tail        chan struct{}
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

func NewBusinessService(
	store *SessionStore,
	selections repository.SelectionRepositoryInterface,
	businesses repository.BusinessRepositoryInterface,
	log logger.Logger,
) *BusinessService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &BusinessService{
		selections: selections,
		businesses: businesses,
		logger:     log,
		timeout:    30 * time.Second,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.onSession(store.Snapshot())
	s.unsubscribe = store.Subscribe(s.onSession)
	return s
}

// Close stops following the session and waits for background work.
func (s *BusinessService) Close() {
	s.closeOnce.Do(func() {
		s.unsubscribe()
		s.cancel()
		s.wg.Wait()
	})
}

// Selected returns the current business without blocking on I/O.
func (s *BusinessService) Selected() *models.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return nil
	}
	b := *s.selected
	return &b
}

func (s *BusinessService) Selection() models.BusinessSelection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	selection := models.BusinessSelection{Loading: s.loading}
	if s.selected != nil {
		b := *s.selected
		selection.Selected = &b
	}
	return selection
}

// Choose persists business as the current principal's selection.
func (s *BusinessService) Choose(ctx context.Context, business models.Business) error {
	s.mu.RLock()
	uid := s.uid
	s.mu.RUnlock()
	if uid == "" {
		return models.ErrNoSession
	}

	record := &models.SelectionRecord{
		PrincipalID: uid,
		Business:    business,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.selections.PutSelection(ctx, record); err != nil {
		s.logger.Errorf("Failed to persist business selection: %v", err)
		return err
	}

	s.mu.Lock()
	if s.uid == uid {
		s.gen++
		s.selected = &business
		s.loading = false
	}
	s.mu.Unlock()

	s.logger.Infof("Business %d selected for %s", business.ID, uid)
	return nil
}

// Clear removes the current principal's selection.
func (s *BusinessService) Clear(ctx context.Context) error {
	s.mu.RLock()
	uid := s.uid
	s.mu.RUnlock()
	if uid == "" {
		return models.ErrNoSession
	}

	if err := s.selections.DeleteSelection(ctx, uid); err != nil {
		return err
	}

	s.mu.Lock()
	if s.uid == uid {
		s.gen++
		s.selected = nil
		s.loading = false
	}
	s.mu.Unlock()
	return nil
}

// onSession runs under the store's write lock; anything that does I/O is
// handed to a goroutine.
func (s *BusinessService) onSession(session models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.Principal == nil {
		previous := s.uid
		s.uid = ""
		s.selected = nil
		s.loading = false
		s.gen++
		if previous != "" {
			s.logger.Debug("Session ended, clearing business selection")
			s.enqueueLocked(func() { s.forget(previous) })
		}
		return
	}

	hydrate := false
	if s.uid != session.Principal.UID {
		s.uid = session.Principal.UID
		s.selected = nil
		s.loading = true
		s.gen++
		hydrate = true
	}

	pick := session.State == models.SessionResolved && s.selected == nil
	if !hydrate && !pick {
		return
	}

	gen, uid, userPK := s.gen, s.uid, session.Claims.UserPK()
	s.enqueueLocked(func() { s.sync(gen, uid, hydrate, pick, userPK) })
}

// enqueueLocked runs task in the background after every earlier task.
// Callers hold s.mu.
func (s *BusinessService) enqueueLocked(task func()) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	prev, done := s.tail, make(chan struct{})
	s.tail = done
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		task()
	}()
}

// forget deletes the persisted selection of a principal that signed out.
func (s *BusinessService) forget(uid string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if err := s.selections.DeleteSelection(ctx, uid); err != nil {
		s.logger.Warnf("Failed to delete business selection for %s: %v", uid, err)
		return
	}
	s.logger.Debugf("Deleted business selection for %s", uid)
}

func (s *BusinessService) sync(gen uint64, uid string, hydrate, pick bool, userPK int64) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if hydrate {
		record, err := s.selections.GetSelection(ctx, uid)
		if err != nil {
			s.logger.Warnf("Failed to load persisted business selection: %v", err)
		}
		if record != nil && s.apply(gen, &record.Business) {
			s.logger.Debugf("Restored business %d for %s", record.Business.ID, uid)
			return
		}
	}

	if !pick {
		s.apply(gen, nil)
		return
	}

	s.mu.RLock()
	current := s.gen == gen && s.selected == nil
	s.mu.RUnlock()
	if !current {
		return
	}

	businesses, err := s.businesses.ListBusinesses(ctx)
	if err != nil {
		s.logger.Errorf("Failed to fetch businesses: %v", err)
		s.apply(gen, nil)
		return
	}

	chosen := pickDefaultBusiness(businesses, userPK)
	if chosen == nil {
		s.apply(gen, nil)
		return
	}

	record := &models.SelectionRecord{PrincipalID: uid, Business: *chosen, UpdatedAt: time.Now().UTC()}
	if err := s.selections.PutSelection(ctx, record); err != nil {
		s.logger.Warnf("Failed to persist default business selection: %v", err)
	}
	if s.apply(gen, chosen) {
		s.logger.Infof("Business %d selected by default for %s", chosen.ID, uid)
	}
}

// apply sets the selection if no newer change happened since gen.
func (s *BusinessService) apply(gen uint64, business *models.Business) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.selected = business
	s.loading = false
	return true
}

// pickDefaultBusiness prefers the business the user created, then the first.
func pickDefaultBusiness(businesses []models.Business, userPK int64) *models.Business {
	if len(businesses) == 0 {
		return nil
	}
	for i := range businesses {
		if userPK != 0 && businesses[i].CreatorID == userPK {
			b := businesses[i]
			return &b
		}
	}
	b := businesses[0]
	return &b
}
