package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/askpaper/internal/api/apierr"
	"github.com/liliang-cn/askpaper/internal/domain"
)

// Auth guards admin routes with a static API key read from X-API-Key or a
// bearer token. An empty apiKey disables the check.
func Auth(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)

	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		key := c.GetHeader("X-API-Key")
		if key == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			apierr.Respond(c, domain.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Next()
	}
}
