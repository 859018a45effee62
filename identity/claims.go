package identity

import (
	"fmt"
	"time"

	"testrelay-portal/models"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimsReader extracts the custom claims namespace from id tokens. Tokens are
// decoded without verification; the API verifies signatures.
type ClaimsReader struct {
	Namespace string
	parser    *jwt.Parser
}

func NewClaimsReader(namespace string) *ClaimsReader {
	if namespace == "" {
		namespace = models.DefaultClaimsNamespace
	}
	return &ClaimsReader{
		Namespace: namespace,
		parser:    jwt.NewParser(),
	}
}

func (r *ClaimsReader) decode(token string) (jwt.MapClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	claims := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// Read returns the claims stored under the namespace, or nil when the token
// carries none.
func (r *ClaimsReader) Read(token string) (models.Claims, error) {
	claims, err := r.decode(token)
	if err != nil {
		return nil, err
	}

	raw, ok := claims[r.Namespace]
	if !ok || raw == nil {
		return nil, nil
	}

	custom, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("claims namespace %s is %T, not an object", r.Namespace, raw)
	}
	return models.Claims(custom), nil
}

// Expiry returns the exp claim of the token. A token without exp yields the
// zero time.
func (r *ClaimsReader) Expiry(token string) (time.Time, error) {
	claims, err := r.decode(token)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// Expired reports whether token expires within skew of now. Undecodable tokens
// count as expired.
func (r *ClaimsReader) Expired(token string, now time.Time, skew time.Duration) bool {
	exp, err := r.Expiry(token)
	if err != nil {
		return true
	}
	if exp.IsZero() {
		return false
	}
	return !now.Add(skew).Before(exp)
}
