package services

import (
	"sync"
	"time"

	"testrelay-portal/models"
)

// SessionStore holds the session state. The bridge is the only writer; any
// number of readers may take snapshots or subscribe to changes.
type SessionStore struct {
	mu      sync.RWMutex
	session models.Session

	// writeMu keeps set and notify together so observers see transitions in
	// the order they were applied.
	writeMu   sync.Mutex
	observers map[int]func(models.Session)
	order     []int
	nextID    int
	now       func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		session:   models.Session{State: models.SessionUnresolved},
		observers: make(map[int]func(models.Session)),
		now:       time.Now,
	}
}

// Snapshot returns a copy of the current session.
func (s *SessionStore) Snapshot() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Subscribe registers fn for every subsequent transition.
func (s *SessionStore) Subscribe(fn func(models.Session)) func() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.nextID++
	id := s.nextID
	s.observers[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.writeMu.Lock()
			defer s.writeMu.Unlock()
			delete(s.observers, id)
			for i, oid := range s.order {
				if oid == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// apply replaces the session and notifies observers.
func (s *SessionStore) apply(next models.Session) {
	s.update(func(models.Session) (models.Session, bool) { return next, true })
}

// update derives the next session from the current one. When fn reports
// false the session is left untouched and nobody is notified. Observers run
// while the write lock is held and must not write back into the store.
func (s *SessionStore) update(fn func(models.Session) (models.Session, bool)) (models.Session, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next, ok := fn(s.session)
	if !ok {
		current := s.session
		s.mu.Unlock()
		return current, false
	}
	next.UpdatedAt = s.now()
	s.session = next
	s.mu.Unlock()

	for _, id := range s.order {
		s.observers[id](next)
	}
	return next, true
}
