package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyOperator holds the authenticated operator name
const ContextKeyOperator = "operator"

// Middleware creates a JWT authentication middleware. It passes every
// request through when the service is disabled.
func Middleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !service.Enabled() {
			c.Set(ContextKeyOperator, DefaultOperator)
			c.Next()
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "missing or malformed authorization header",
			})
			return
		}

		claims, err := service.Validate(tokenString)
		if err != nil {
			var authErr AuthError
			if !errors.As(err, &authErr) {
				authErr = ErrInvalidToken
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}

		c.Set(ContextKeyOperator, claims.Operator)
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter for websocket upgrades
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if t := c.Query("token"); t != "" {
			return t, true
		}
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}
