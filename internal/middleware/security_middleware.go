package middleware

import (
	"net/http"
	"strings"

	"grocery-checkout/internal/auth"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "userID"
	RoleKey   = "role"
)

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "UNAUTHORIZED"})
}

// AuthMiddleware checks if the user has a valid JWT token
func AuthMiddleware(tm *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Format: "Bearer <token>"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			unauthorized(c, "Authorization header must start with Bearer")
			return
		}

		claims, err := tm.ValidateToken(tokenString)
		if err != nil {
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole is a secondary guard that checks for specific permissions
func RequireRole(allowedRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) != allowedRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "You do not have permission to access this resource",
				"code":  "FORBIDDEN",
			})
			return
		}
		c.Next()
	}
}

// IsAdmin reports whether the authenticated caller holds the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetString(RoleKey) == auth.RoleAdmin
}
