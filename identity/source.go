package identity

import "context"

// Principal is a signed-in identity as seen by the session bridge. The bridge
// never inspects anything beyond the uid and the id token.
type Principal interface {
	UID() string
	// IDToken returns the current id token. With forceRefresh the provider
	// re-issues the token so newly provisioned claims become visible.
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
}

// SessionSource reports sign-in, sign-out and token change events. The
// callback receives nil when nobody is signed in.
type SessionSource interface {
	Subscribe(fn func(Principal)) (unsubscribe func())
}
