package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hospital-auth/internal/domain"
)

// RolePolicy es la lista de roles permitidos para un handler.
type RolePolicy struct {
	allowed map[domain.Role]struct{}
	roles   []domain.Role
}

func NewRolePolicy(roles ...domain.Role) RolePolicy {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return RolePolicy{allowed: allowed, roles: roles}
}

func (p RolePolicy) Allows(role domain.Role) bool {
	_, ok := p.allowed[role]
	return ok
}

// RequireRoles restringe un handler a los roles dados. La autenticación
// corre antes en la cadena: aquí los claims ya fueron validados.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	policy := NewRolePolicy(roles...)
	return func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if !policy.Allows(claims.Role) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "insufficient permissions",
				"required": policy.roles,
				"current":  claims.Role,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
