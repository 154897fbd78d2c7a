package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"teamtasks/backend/internal/access"
)

const identityKey = "identity"

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	ParseAccessToken(token string) (access.Identity, error)
}

// AuthzMiddleware rejects requests without a valid bearer token and stores
// the caller's identity on the context.
func AuthzMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authorization header is required",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token_format",
				"message": "Authorization header must use Bearer token",
			})
			return
		}

		identity, err := verifier.ParseAccessToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Debug().Err(err).Msg("rejected access token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token validation failed",
			})
			return
		}

		c.Set(identityKey, identity)
		logger := zerolog.Ctx(c.Request.Context()).With().Str("user_id", identity.UserID.String()).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

// IdentityFrom returns the identity set by AuthzMiddleware, or the zero
// identity for anonymous requests.
func IdentityFrom(c *gin.Context) access.Identity {
	if v, ok := c.Get(identityKey); ok {
		if identity, ok := v.(access.Identity); ok {
			return identity
		}
	}
	return access.Identity{}
}

// SetIdentity is used by tests and internal callers that authenticate by
// other means.
func SetIdentity(c *gin.Context, identity access.Identity) {
	c.Set(identityKey, identity)
}
