package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds the authentication middleware configuration. Either
// a plain token or a bcrypt hash of it; the hash wins when both are set.
type AuthConfig struct {
	TokenAPI     string
	TokenAPIHash string
}

// BearerAuth returns a middleware validating the Bearer token.
func BearerAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing Authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid format, expected: Bearer {token}",
			})
			return
		}

		if !tokenValid(parts[1], cfg) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Next()
	}
}

func tokenValid(token string, cfg AuthConfig) bool {
	if cfg.TokenAPIHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.TokenAPIHash), []byte(token)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(cfg.TokenAPI)) == 1
}
