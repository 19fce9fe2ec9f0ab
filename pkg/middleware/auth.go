// Package middleware provides the gin middleware shared by the HTTP servers.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/CesarCrz/cEatssFB/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Token extraction failures. They are logged, never returned to clients.
var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthScheme = errors.New("invalid authorization scheme: expected Bearer")
	ErrEmptyToken        = errors.New("empty bearer token")
)

// callerKey is the gin context key holding the authenticated *session.Caller.
const callerKey = "caller"

// Authenticator turns a bearer token into a caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Caller, error)
}

// ExtractBearerToken extracts the token from an "Authorization: Bearer <token>" header.
func ExtractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", ErrInvalidAuthScheme
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

// RequireAuth rejects requests without a valid bearer token. The caller is
// stored in the gin context for the handlers.
//
//   - 401: missing or malformed header, invalid or expired token
//   - 403: token valid but the profile is missing or unusable
//   - 500: store failure while loading the profile
func RequireAuth(auth Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c.Request)
		if err != nil {
			logger.Debug("Rejected request without bearer token", zap.Error(err))
			Abort(c, http.StatusUnauthorized, session.Message(session.ErrUnauthenticated))
			return
		}

		caller, err := auth.Authenticate(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrUnauthenticated):
			Abort(c, http.StatusUnauthorized, session.Message(err))
			return
		case errors.Is(err, session.ErrAccessDenied), errors.Is(err, session.ErrProfileNotFound):
			Abort(c, http.StatusForbidden, session.Message(err))
			return
		default:
			logger.Error("Failed to authenticate caller", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "Error interno al validar la sesión.",
				"error":   err.Error(),
			})
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// CallerFrom returns the caller stored by RequireAuth.
func CallerFrom(c *gin.Context) (*session.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil, false
	}
	caller, ok := v.(*session.Caller)
	return caller, ok
}

// Abort ends the request with a {success:false, message} body.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
