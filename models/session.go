package models

import (
	"errors"
	"time"
)

// SessionState is the bridge's position in the sign-in cycle
type SessionState string

const (
	SessionUnresolved      SessionState = "UNRESOLVED"
	SessionNoSession       SessionState = "NO_SESSION"
	SessionResolvingClaims SessionState = "RESOLVING_CLAIMS"
	SessionResolved        SessionState = "RESOLVED"
)

// Token accessor errors
var (
	ErrNoSession      = errors.New("no signed-in principal")
	ErrClaimsMissing  = errors.New("token carries no claims")
	ErrProvisioning   = errors.New("claims provisioning failed")
	ErrSessionExpired = errors.New("session token expired")
)

// Principal is the minimal view of a signed-in identity kept in session state
type Principal struct {
	UID string `json:"uid"`
}

// Session is the state owned by the session bridge
type Session struct {
	State     SessionState `json:"state"`
	Principal *Principal   `json:"principal"`
	Loading   bool         `json:"loading"`
	Token     string       `json:"-"`
	Claims    Claims       `json:"claims"`
	Err       error        `json:"-"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Resolved reports whether pages may read token and claims synchronously.
func (s Session) Resolved() bool {
	return s.State == SessionResolved && !s.Loading && s.Claims != nil
}

// Error returns the last recoverable error message, if any.
func (s Session) Error() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// TokenResult is returned by the token accessor. A result is only produced
// when the token carries claims.
type TokenResult struct {
	Token  string `json:"token"`
	Claims Claims `json:"claims"`
}

// SessionView is the JSON shape of the session exposed to pages
type SessionView struct {
	State     SessionState `json:"state"`
	Principal *Principal   `json:"principal,omitempty"`
	Loading   bool         `json:"loading"`
	Claims    Claims       `json:"claims,omitempty"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// View strips the token from the session for serialization.
func (s Session) View() SessionView {
	return SessionView{
		State:     s.State,
		Principal: s.Principal,
		Loading:   s.Loading,
		Claims:    s.Claims,
		Error:     s.Error(),
		UpdatedAt: s.UpdatedAt,
	}
}

// SignInRequest carries the identity provider credentials for a new session
type SignInRequest struct {
	UID          string `json:"uid" validate:"required"`
	RefreshToken string `json:"refresh_token" validate:"required"`
	IDToken      string `json:"id_token,omitempty"`
}
