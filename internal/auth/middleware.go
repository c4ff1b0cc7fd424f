package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserIDKey = "user_id"
	CtxRolesKey  = "roles"
	CtxClaimsKey = "claims"
)

// RequireJWT verifies the bearer token and stores subject, roles and claims
// on the context. rv may be nil.
func RequireJWT(secret []byte, rv Revoker) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Thiếu token xác thực"})
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		claims, err := ParseJWT(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token không hợp lệ hoặc hết hạn"})
			return
		}
		if revoked, err := Revoked(c.Request.Context(), rv, claims); err != nil || revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token không hợp lệ hoặc hết hạn"})
			return
		}
		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxRolesKey, claims.AllRoles())
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// RequireRoles must run after RequireJWT. The 403 body discloses both the
// required and the presented roles.
func RequireRoles(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current := Roles(c)
		for _, r := range current {
			if slices.Contains(allowed, r) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"message":  "Không có quyền truy cập",
			"required": allowed,
			"current":  current,
		})
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

func Roles(c *gin.Context) []string {
	if v, ok := c.Get(CtxRolesKey); ok {
		if roles, ok := v.([]string); ok {
			return roles
		}
	}
	return []string{}
}

func ClaimsFrom(c *gin.Context) *Claims {
	if v, ok := c.Get(CtxClaimsKey); ok {
		if cl, ok := v.(*Claims); ok {
			return cl
		}
	}
	return nil
}
