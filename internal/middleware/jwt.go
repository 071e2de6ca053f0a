package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clipstack/backend/internal/auth"
	"github.com/clipstack/backend/pkg/response"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
// Tokens carry identity and an organization hint, never a role.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(auth.ContextUserID, claims.UserID)
		c.Set(auth.ContextUserEmail, claims.Email)
		if claims.OrgID != nil {
			c.Set(auth.ContextOrgID, *claims.OrgID)
		}
		c.Next()
	}
}
