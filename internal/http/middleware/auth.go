// README: Auth middleware; verifies the bearer token and stores the caller identity on the context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vanbora/internal/infra"
)

const (
	ctxCallerUID   = "caller_uid"
	ctxCallerRole  = "caller_role"
	ctxCallerEmail = "caller_email"
)

// Auth rejects requests without a valid "Bearer <token>" header with 401.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "unauthenticated"})
			return
		}
		id, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || id == nil || id.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthenticated"})
			return
		}
		c.Set(ctxCallerUID, id.UID)
		c.Set(ctxCallerRole, id.Role())
		c.Set(ctxCallerEmail, id.Email)
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxCallerUID)
}

// CallerRole is "driver" for driver accounts and "" otherwise.
func CallerRole(c *gin.Context) string {
	return c.GetString(ctxCallerRole)
}

func CallerEmail(c *gin.Context) string {
	return c.GetString(ctxCallerEmail)
}

func CallerIsDriver(c *gin.Context) bool {
	return CallerRole(c) == infra.RoleDriver
}
