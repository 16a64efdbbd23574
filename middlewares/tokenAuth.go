package middlewares

import (
	"CareChain/models"
	"CareChain/services"
	"CareChain/utils"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	kindUnauthorized = "Unauthorized"
	callerKey        = "caller"
)

// TokenValidator decrypts bearer tokens.
type TokenValidator interface {
	Validate(token string) (*utils.TokenClaims, error)
}

// TokenAuthMiddleware validates the access token and stores the caller in the
// gin context. The token is read from the Authorization header, falling back
// to the accessToken query parameter.
func TokenAuthMiddleware(tokens TokenValidator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractToken(c)
		if !ok {
			HttpError(c, http.StatusUnauthorized, kindUnauthorized, "missing access token", nil)
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			message := "invalid token"
			if errors.Is(err, utils.ErrTokenExpired) {
				message = "token expired"
			}
			log.Debug("token rejected", zap.String("path", c.FullPath()), zap.Error(err))
			HttpError(c, http.StatusUnauthorized, kindUnauthorized, message, nil)
			return
		}

		role := models.Role(strings.ToLower(claims.Role))
		if !role.Valid() {
			HttpError(c, http.StatusUnauthorized, kindUnauthorized, "unknown role", nil)
			return
		}

		c.Set(callerKey, services.Caller{ID: claims.UserID, Role: role})
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	token := c.Query("accessToken")
	return token, token != ""
}

// RoleAuthMiddleware restricts access to callers holding one of roles. It
// must run after TokenAuthMiddleware.
func RoleAuthMiddleware(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFromContext(c)
		if !ok {
			HttpError(c, http.StatusUnauthorized, kindUnauthorized, "caller not found in context", nil)
			return
		}
		for _, role := range roles {
			if caller.Role == role {
				c.Next()
				return
			}
		}
		HttpError(c, http.StatusForbidden, string(services.KindForbidden), "insufficient privileges", nil)
	}
}

// CallerFromContext returns the caller set by TokenAuthMiddleware.
func CallerFromContext(c *gin.Context) (services.Caller, bool) {
	value, exists := c.Get(callerKey)
	if !exists {
		return services.Caller{}, false
	}
	caller, ok := value.(services.Caller)
	return caller, ok
}
