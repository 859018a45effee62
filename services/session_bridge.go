package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"testrelay-portal/identity"
	"testrelay-portal/metrics"
	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"golang.org/x/sync/singleflight"
)

const refreshTimeout = 30 * time.Second

// SessionBridge turns identity provider events into a session whose token
// carries authorization claims. It provisions missing claims at most once per
// sign-in cycle and forces a token re-issue so the new claims show up.
type SessionBridge struct {
	cfg         models.BridgeConfig
	store       *SessionStore
	reader      *identity.ClaimsReader
	provisioner ClaimsProvisionerInterface
	logger      logger.Logger
	skew        time.Duration
	now         func() time.Time

	// gen changes on every session event; results computed for an older
	// generation are discarded.
	gen atomic.Uint64

	mu           sync.Mutex
	principal    identity.Principal
	cycle        uint64
	attemptedUID string
	provisionErr error
	closed       bool

	group       singleflight.Group
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewSessionBridge(
	cfg models.BridgeConfig,
	store *SessionStore,
	provisioner ClaimsProvisionerInterface,
	expirySkew time.Duration,
	log logger.Logger,
) *SessionBridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionBridge{
		cfg:         cfg,
		store:       store,
		reader:      identity.NewClaimsReader(cfg.ClaimsNamespace),
		provisioner: provisioner,
		logger:      log,
		skew:        expirySkew,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start subscribes to source. Resolution for each event runs in the
// background; observe the store for the outcome.
func (b *SessionBridge) Start(source identity.SessionSource) {
	b.mu.Lock()
	if b.unsubscribe != nil || b.closed {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	unsubscribe := source.Subscribe(b.handleChange)

	b.mu.Lock()
	b.unsubscribe = unsubscribe
	b.mu.Unlock()
}

// Close stops listening and waits for in-flight resolution. Safe to call
// more than once.
func (b *SessionBridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	unsubscribe := b.unsubscribe
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	b.cancel()
	b.wg.Wait()
}

func (b *SessionBridge) handleChange(p identity.Principal) {
	gen := b.begin(p)
	if p == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		if err := b.resolve(b.ctx, gen, p); err != nil {
			b.logger.Warnf("Session resolution for %s did not complete: %v", p.UID(), err)
		}
	}()
}

// OnSessionChange handles one session event synchronously. A nil principal
// means signed out.
func (b *SessionBridge) OnSessionChange(ctx context.Context, p identity.Principal) error {
	gen := b.begin(p)
	if p == nil {
		return nil
	}
	return b.resolve(ctx, gen, p)
}

// begin records the event and starts a new generation. A different principal,
// or none, starts a new sign-in cycle.
func (b *SessionBridge) begin(p identity.Principal) uint64 {
	b.mu.Lock()
	if p == nil || b.principal == nil || b.principal.UID() != p.UID() {
		b.cycle++
		b.attemptedUID = ""
		b.provisionErr = nil
	}
	b.principal = p
	gen := b.gen.Add(1)
	b.mu.Unlock()

	if p == nil {
		b.logger.Info("Session cleared")
		b.commit(gen, models.Session{State: models.SessionNoSession})
	}
	return gen
}

func (b *SessionBridge) resolve(ctx context.Context, gen uint64, p identity.Principal) error {
	log := b.logger.WithFields(map[string]interface{}{"uid": p.UID()})

	token, err := p.IDToken(ctx, false)
	if err != nil {
		b.commit(gen, b.resolving(p, err))
		return fmt.Errorf("failed to get id token: %w", err)
	}

	claims, err := b.reader.Read(token)
	if err != nil {
		b.commit(gen, b.resolving(p, err))
		return err
	}
	if claims != nil {
		b.commit(gen, b.resolved(p, token, claims))
		return nil
	}

	log.Info("Token carries no claims, resolving")
	if !b.commit(gen, b.resolving(p, nil)) {
		return nil
	}

	if b.cfg.ProvisionOnMissingClaims {
		if err := b.provisionOnce(ctx, p, token); err != nil {
			b.commit(gen, b.resolving(p, err))
			return err
		}
	}

	if b.gen.Load() != gen {
		log.Debug("Session changed during provisioning, discarding result")
		return nil
	}

	token, err = p.IDToken(ctx, true)
	if err != nil {
		metrics.RecordTokenRefresh(metrics.ResultFailure)
		b.commit(gen, b.resolving(p, err))
		return fmt.Errorf("failed to re-issue token: %w", err)
	}
	metrics.RecordTokenRefresh(metrics.ResultSuccess)

	claims, err = b.reader.Read(token)
	if err != nil {
		b.commit(gen, b.resolving(p, err))
		return err
	}
	if claims == nil {
		log.Warn("Re-issued token still carries no claims")
		b.commit(gen, b.resolving(p, models.ErrClaimsMissing))
		return models.ErrClaimsMissing
	}

	b.commit(gen, b.resolved(p, token, claims))
	log.Infof("Session resolved with role %s", claims.DefaultRole())
	return nil
}

// provisionOnce calls the provisioner unless this sign-in cycle already did.
// Concurrent callers for the same principal share one call.
func (b *SessionBridge) provisionOnce(ctx context.Context, p identity.Principal, token string) error {
	uid := p.UID()
	_, err, _ := b.group.Do("provision:"+uid, func() (interface{}, error) {
		b.mu.Lock()
		if b.attemptedUID == uid {
			err := b.provisionErr
			b.mu.Unlock()
			return nil, err
		}
		cycle := b.cycle
		b.mu.Unlock()

		req := models.ProvisionRequest{
			Role:       b.cfg.DefaultRole,
			BusinessID: b.cfg.BusinessID,
		}
		err := b.provisioner.Provision(ctx, token, req)
		if err != nil {
			metrics.RecordProvisioning(metrics.ResultFailure)
			if !errors.Is(err, models.ErrProvisioning) {
				err = fmt.Errorf("%w: %v", models.ErrProvisioning, err)
			}
		} else {
			metrics.RecordProvisioning(metrics.ResultSuccess)
		}

		b.mu.Lock()
		if b.cycle == cycle {
			b.attemptedUID = uid
			b.provisionErr = err
		}
		b.mu.Unlock()
		return nil, err
	})
	return err
}

// RetryProvisioning clears a failed provisioning attempt and resolves the
// current principal again.
func (b *SessionBridge) RetryProvisioning(ctx context.Context) error {
	b.mu.Lock()
	p := b.principal
	if p == nil {
		b.mu.Unlock()
		return models.ErrNoSession
	}
	if b.store.Snapshot().Resolved() {
		b.mu.Unlock()
		return nil
	}
	b.attemptedUID = ""
	b.provisionErr = nil
	gen := b.gen.Add(1)
	b.mu.Unlock()

	b.logger.Infof("Retrying claims resolution for %s", p.UID())
	b.commit(gen, b.resolving(p, nil))
	return b.resolve(ctx, gen, p)
}

// GetToken returns a token that carries claims. The cached token is served
// without any network call while it is unexpired.
func (b *SessionBridge) GetToken(ctx context.Context) (models.TokenResult, error) {
	b.mu.Lock()
	p := b.principal
	b.mu.Unlock()
	if p == nil {
		return models.TokenResult{}, models.ErrNoSession
	}

	snapshot := b.store.Snapshot()
	if snapshot.State == models.SessionResolved && snapshot.Claims != nil && snapshot.Token != "" &&
		!b.reader.Expired(snapshot.Token, b.now(), b.skew) {
		return models.TokenResult{Token: snapshot.Token, Claims: snapshot.Claims}, nil
	}

	if snapshot.State == models.SessionResolvingClaims && errors.Is(snapshot.Err, models.ErrProvisioning) {
		return models.TokenResult{}, snapshot.Err
	}

	return b.Refresh(ctx)
}

// Refresh forces a token re-issue and re-derives the claims. Concurrent
// callers share one refresh; it runs on the bridge's context so one caller
// giving up does not fail the others.
func (b *SessionBridge) Refresh(ctx context.Context) (models.TokenResult, error) {
	b.mu.Lock()
	p := b.principal
	b.mu.Unlock()
	if p == nil {
		return models.TokenResult{}, models.ErrNoSession
	}

	ch := b.group.DoChan("refresh:"+p.UID(), func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(b.ctx, refreshTimeout)
		defer cancel()
		return b.refresh(refreshCtx, p)
	})

	select {
	case <-ctx.Done():
		return models.TokenResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.TokenResult{}, res.Err
		}
		if res.Shared {
			b.logger.Debug("Token refresh shared with a concurrent caller")
		}
		if !b.isCurrent(p) {
			b.logger.Debug("Principal changed during refresh, dropping token")
			return models.TokenResult{}, models.ErrNoSession
		}
		return res.Val.(models.TokenResult), nil
	}
}

func (b *SessionBridge) refresh(ctx context.Context, p identity.Principal) (models.TokenResult, error) {
	gen := b.gen.Load()

	token, err := p.IDToken(ctx, true)
	if err != nil {
		metrics.RecordTokenRefresh(metrics.ResultFailure)
		return models.TokenResult{}, fmt.Errorf("token refresh failed: %w", err)
	}
	metrics.RecordTokenRefresh(metrics.ResultSuccess)

	claims, err := b.reader.Read(token)
	if err != nil {
		return models.TokenResult{}, err
	}
	if claims == nil {
		return models.TokenResult{}, models.ErrClaimsMissing
	}

	b.commit(gen, b.resolved(p, token, claims))
	return models.TokenResult{Token: token, Claims: claims}, nil
}

// isCurrent reports whether p is still the signed-in principal.
func (b *SessionBridge) isCurrent(p identity.Principal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.principal != nil && b.principal.UID() == p.UID()
}

// Session returns the current session snapshot.
func (b *SessionBridge) Session() models.Session {
	return b.store.Snapshot()
}

// Store exposes the session store for observers.
func (b *SessionBridge) Store() *SessionStore {
	return b.store
}

// commit applies next if no newer event has arrived since gen.
func (b *SessionBridge) commit(gen uint64, next models.Session) bool {
	applied, ok := b.store.update(func(current models.Session) (models.Session, bool) {
		if b.gen.Load() != gen {
			return current, false
		}
		return next, true
	})
	if !ok {
		b.logger.Debugf("Discarded stale %s transition", next.State)
		return false
	}
	metrics.SetSessionState(string(applied.State))
	return true
}

func (b *SessionBridge) resolving(p identity.Principal, err error) models.Session {
	return models.Session{
		State:     models.SessionResolvingClaims,
		Principal: &models.Principal{UID: p.UID()},
		Loading:   true,
		Err:       err,
	}
}

func (b *SessionBridge) resolved(p identity.Principal, token string, claims models.Claims) models.Session {
	return models.Session{
		State:     models.SessionResolved,
		Principal: &models.Principal{UID: p.UID()},
		Token:     token,
		Claims:    claims,
	}
}
