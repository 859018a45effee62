package transport

import (
	"errors"
	"fmt"
	"strings"

	"testrelay-portal/models"
)

// ErrResponseTooLarge is returned when an API response exceeds the size the
// gateway buffers.
var ErrResponseTooLarge = errors.New("graphql response too large")

// AuthError is returned by the link when a request cannot be authenticated.
// Terminal errors mean the session expired again after a refresh; callers
// should send the user back to sign-in.
type AuthError struct {
	Terminal bool
	Reason   string
	Err      error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + e.Reason
	}
	return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsTerminal reports whether err is a terminal authentication failure.
func IsTerminal(err error) bool {
	var aerr *AuthError
	return errors.As(err, &aerr) && aerr.Terminal
}

// IsSessionExpired reports whether err means the session token expired.
func IsSessionExpired(err error) bool {
	return errors.Is(err, models.ErrSessionExpired)
}

// GraphQLError is one entry of a GraphQL errors array
type GraphQLError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Path    string `json:"path,omitempty"`
}

// GraphQLErrors is returned when the response carries an errors array
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		if ge.Code != "" {
			msgs = append(msgs, fmt.Sprintf("%s (%s)", ge.Message, ge.Code))
			continue
		}
		msgs = append(msgs, ge.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}
