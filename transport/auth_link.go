package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"testrelay-portal/metrics"
	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	// RequestIDHeader correlates gateway logs with API logs
	RequestIDHeader = "X-Request-ID"

	// DefaultExpiredTokenMarker is the error code the API reports for an expired token
	DefaultExpiredTokenMarker = "JWTExpired"

	// Expiry replies are small error documents; larger bodies are not inspected.
	maxInspectBytes = 1 << 20
)

// TokenSource supplies session tokens to the link
type TokenSource interface {
	GetToken(ctx context.Context) (models.TokenResult, error)
	Refresh(ctx context.Context) (models.TokenResult, error)
}

// AuthLink is an http.RoundTripper that authenticates API requests with the
// session token. When the API reports an expired token it refreshes once and
// resubmits the identical request; a second expiry is terminal.
type AuthLink struct {
	tokens   TokenSource
	selector *RoleSelector
	marker   string
	next     http.RoundTripper
	logger   logger.Logger
}

func NewAuthLink(tokens TokenSource, selector *RoleSelector, marker string, next http.RoundTripper, log logger.Logger) *AuthLink {
	if marker == "" {
		marker = DefaultExpiredTokenMarker
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return &AuthLink{
		tokens:   tokens,
		selector: selector,
		marker:   marker,
		next:     next,
		logger:   log,
	}
}

func (l *AuthLink) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	body, err := readBody(req)
	if err != nil {
		return nil, err
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	log := l.logger.WithFields(map[string]interface{}{
		"request_id": requestID,
		"url":        req.URL.Path,
	})

	token, err := l.tokens.GetToken(ctx)
	if err != nil {
		return nil, &AuthError{Reason: "token unavailable", Err: err}
	}

	resp, err := l.send(req, body, token.Token, requestID)
	if err != nil {
		return nil, err
	}

	expired, err := l.expired(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	if !expired {
		return resp, nil
	}
	discard(resp)

	log.Info("Token expired, refreshing and retrying once")
	metrics.RecordLinkRetry()

	token, err = l.tokens.Refresh(ctx)
	if err != nil {
		metrics.RecordTerminalAuthFailure()
		log.Warnf("Token refresh after expiry failed: %v", err)
		return nil, &AuthError{
			Terminal: true,
			Reason:   "refresh failed",
			Err:      fmt.Errorf("%w: %v", models.ErrSessionExpired, err),
		}
	}

	resp, err = l.send(req, body, token.Token, requestID)
	if err != nil {
		return nil, err
	}

	expired, err = l.expired(resp)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	if expired {
		discard(resp)
		metrics.RecordTerminalAuthFailure()
		log.Warn("Token expired again after refresh")
		return nil, &AuthError{Terminal: true, Reason: "expired after refresh", Err: models.ErrSessionExpired}
	}
	return resp, nil
}

// send issues a copy of req with the given token and the current role headers.
func (l *AuthLink) send(req *http.Request, body []byte, token, requestID string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}

	out.Header.Set("Authorization", "Bearer "+token)
	out.Header.Set(RequestIDHeader, requestID)
	if l.selector != nil {
		for k, v := range l.selector.Headers() {
			out.Header.Set(k, v)
		}
	}

	return l.next.RoundTrip(out)
}

// expired reports whether resp signals an expired token. Only the marker
// counts: a 401 for any other reason is an authorization failure and is
// passed through. The body is left readable from the start.
func (l *AuthLink) expired(resp *http.Response) (bool, error) {
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "json") {
		return false, nil
	}

	prefix, complete, err := peekBody(resp, maxInspectBytes)
	if err != nil {
		return false, err
	}
	if !complete {
		return false, nil
	}
	return HasExpiredTokenError(prefix, l.marker), nil
}

type replayBody struct {
	io.Reader
	io.Closer
}

// peekBody reads up to limit bytes of the body and puts them back in front
// of the unread remainder. complete is false when the body is longer.
func peekBody(resp *http.Response, limit int64) ([]byte, bool, error) {
	prefix, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}
	resp.Body = replayBody{
		Reader: io.MultiReader(bytes.NewReader(prefix), resp.Body),
		Closer: resp.Body,
	}
	return prefix, int64(len(prefix)) <= limit, nil
}

// HasExpiredTokenError reports whether a GraphQL response body carries an
// error whose message or extensions.code contains marker.
func HasExpiredTokenError(body []byte, marker string) bool {
	if !gjson.ValidBytes(body) {
		return false
	}
	found := false
	gjson.GetBytes(body, "errors").ForEach(func(_, e gjson.Result) bool {
		if strings.Contains(e.Get("message").String(), marker) ||
			strings.Contains(e.Get("extensions.code").String(), marker) {
			found = true
			return false
		}
		return true
	})
	return found
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	return body, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// IsAuthError reports whether err came from the link rather than the API.
func IsAuthError(err error) bool {
	var aerr *AuthError
	return errors.As(err, &aerr)
}
