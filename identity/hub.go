package identity

import (
	"context"
	"sync"
	"time"

	"testrelay-portal/utils/logger"
)

// expiring is implemented by principals that can tell when their token is
// about to lapse.
type expiring interface {
	ExpiresWithin(d time.Duration) bool
}

type listener struct {
	id int
	fn func(Principal)
}

// Hub is the in-process session source. It holds at most one principal and
// delivers events to listeners in subscription order, one event at a time.
type Hub struct {
	mu        sync.Mutex
	current   Principal
	listeners []listener
	nextID    int

	dispatchMu sync.Mutex
	logger     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{logger: log}
}

// Subscribe registers fn and immediately delivers the current principal.
func (h *Hub) Subscribe(fn func(Principal)) func() {
	h.dispatchMu.Lock()
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners = append(h.listeners, listener{id: id, fn: fn})
	current := h.current
	h.mu.Unlock()
	fn(current)
	h.dispatchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, l := range h.listeners {
				if l.id == id {
					h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SignIn replaces the current principal.
func (h *Hub) SignIn(p Principal) {
	if p == nil {
		h.SignOut()
		return
	}
	h.logger.Infof("Principal %s signed in", p.UID())
	h.publish(p)
}

// SignOut clears the current principal.
func (h *Hub) SignOut() {
	h.logger.Info("Principal signed out")
	h.publish(nil)
}

func (h *Hub) Current() Principal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Rotate re-issues the current principal's token when it expires within
// window and announces the change to listeners. It reports whether a
// rotation happened.
func (h *Hub) Rotate(ctx context.Context, window time.Duration) (bool, error) {
	current := h.Current()
	if current == nil {
		return false, nil
	}
	if e, ok := current.(expiring); ok && !e.ExpiresWithin(window) {
		return false, nil
	}

	if _, err := current.IDToken(ctx, true); err != nil {
		return false, err
	}

	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()
	h.mu.Lock()
	if h.current != current {
		h.mu.Unlock()
		return false, nil
	}
	listeners := append([]listener(nil), h.listeners...)
	h.mu.Unlock()

	h.logger.Debugf("Token rotated for principal %s", current.UID())
	for _, l := range listeners {
		l.fn(current)
	}
	return true, nil
}

func (h *Hub) publish(p Principal) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	h.mu.Lock()
	h.current = p
	listeners := append([]listener(nil), h.listeners...)
	h.mu.Unlock()

	for _, l := range listeners {
		l.fn(p)
	}
}
