package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"testrelay-portal/utils/logger"

	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when the token endpoint answers without an id_token.
var ErrNoIDToken = errors.New("token endpoint returned no id_token")

// TokenPrincipalConfig configures a refresh-token backed principal
type TokenPrincipalConfig struct {
	TokenURL   string
	APIKey     string
	ExpirySkew time.Duration
	HTTPClient *http.Client
	Reader     *ClaimsReader
}

// TokenPrincipal is a hosted identity provider session. It exchanges the
// refresh token for id tokens at the secure-token endpoint.
type TokenPrincipal struct {
	uid    string
	oauth  *oauth2.Config
	skew   time.Duration
	client *http.Client
	reader *ClaimsReader
	logger logger.Logger
	now    func() time.Time

	mu           sync.Mutex
	refreshToken string
	idToken      string
	expiry       time.Time
}

// NewTokenPrincipal creates a principal for uid. idToken may be empty, in
// which case the first IDToken call performs the exchange.
func NewTokenPrincipal(uid, refreshToken, idToken string, cfg TokenPrincipalConfig, log logger.Logger) (*TokenPrincipal, error) {
	if uid == "" {
		return nil, errors.New("uid is required")
	}
	if refreshToken == "" {
		return nil, errors.New("refresh token is required")
	}

	tokenURL, err := url.Parse(cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid token url: %w", err)
	}
	if cfg.APIKey != "" {
		q := tokenURL.Query()
		q.Set("key", cfg.APIKey)
		tokenURL.RawQuery = q.Encode()
	}

	reader := cfg.Reader
	if reader == nil {
		reader = NewClaimsReader("")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	p := &TokenPrincipal{
		uid: uid,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL.String(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		skew:         cfg.ExpirySkew,
		client:       client,
		reader:       reader,
		logger:       log.WithFields(map[string]interface{}{"uid": uid}),
		now:          time.Now,
		refreshToken: refreshToken,
	}

	if idToken != "" {
		p.idToken = idToken
		p.expiry, _ = reader.Expiry(idToken)
	}
	return p, nil
}

func (p *TokenPrincipal) UID() string {
	return p.uid
}

// IDToken returns the cached id token unless it is within the expiry skew or
// forceRefresh is set.
func (p *TokenPrincipal) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !forceRefresh && p.idToken != "" && !p.expiringLocked(p.skew) {
		return p.idToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken}).Token()
	if err != nil {
		p.logger.Errorf("Failed to refresh id token: %v", err)
		return "", fmt.Errorf("failed to refresh id token: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return "", ErrNoIDToken
	}

	p.idToken = idToken
	if tok.RefreshToken != "" {
		p.refreshToken = tok.RefreshToken
	}
	if exp, err := p.reader.Expiry(idToken); err == nil && !exp.IsZero() {
		p.expiry = exp
	} else {
		p.expiry = tok.Expiry
	}

	p.logger.Debugf("Id token refreshed (forced=%t), expires %s", forceRefresh, p.expiry.Format(time.RFC3339))
	return idToken, nil
}

// ExpiresWithin reports whether the cached id token expires within d.
func (p *TokenPrincipal) ExpiresWithin(d time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idToken == "" || p.expiringLocked(d)
}

func (p *TokenPrincipal) expiringLocked(d time.Duration) bool {
	if p.expiry.IsZero() {
		return false
	}
	return !p.now().Add(d).Before(p.expiry)
}
