package middelware

import (
	"net/http"

	"testrelay-portal/models"
	"testrelay-portal/utils/logger"

	"github.com/gin-gonic/gin"
)

// Context keys set by RequireSession
const (
	ContextPrincipalID = "principal_id"
	ContextClaims      = "session_claims"
)

// SessionReader exposes the current session
type SessionReader interface {
	Session() models.Session
}

// SessionMiddleware gates routes on the session state
type SessionMiddleware struct {
	sessions SessionReader
	logger   logger.Logger
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(sessions SessionReader, log logger.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: sessions,
		logger:   log,
	}
}

// RequireSession lets requests through only once the session is resolved.
// While claims are still being resolved it answers 503 so pages render a
// loading state instead of an empty one.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := m.sessions.Session()

		switch {
		case session.Resolved():
			c.Set(ContextPrincipalID, session.Principal.UID)
			c.Set(ContextClaims, session.Claims)
			c.Next()
			return
		case session.State == models.SessionUnresolved || session.Loading:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.Failure(
				http.StatusServiceUnavailable,
				"Session is still loading",
				"SessionLoading",
				session.Error(),
			))
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.Failure(
				http.StatusUnauthorized,
				"No signed-in session",
				"AuthenticationError",
				models.ErrNoSession.Error(),
			))
		}
	}
}

// RequireRole rejects requests whose session claims do not allow role.
// Must run after RequireSession.
func (m *SessionMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, _ := c.Get(ContextClaims)
		claims, _ := value.(models.Claims)
		if claims == nil || !claims.HasRole(role) {
			m.logger.Warnf("Request to %s denied: role %s not allowed", c.FullPath(), role)
			c.AbortWithStatusJSON(http.StatusForbidden, models.Failure(
				http.StatusForbidden,
				"Insufficient permissions",
				"AuthorizationError",
				"role "+role+" is required",
			))
			return
		}
		c.Next()
	}
}
