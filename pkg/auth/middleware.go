package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recipecost/pkg/logging"
)

const identityKey = "auth_identity"

// RequireAuth verifies the bearer access token and stores the identity it
// asserts on the context. It never consults the user store, so role changes
// apply only once the caller obtains a new access token.
func RequireAuth(issuer *Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimSpace(header[len("Bearer "):]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"erro": "Token ausente."})
			return
		}
		token := strings.TrimSpace(header[len("Bearer "):])

		id, err := issuer.VerifyAccess(token)
		if err != nil {
			// expired and malformed tokens answer alike
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"erro": "Token inválido."})
			return
		}
		c.Set(identityKey, id)
		c.Set(logging.UserIDKey, id.ID)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"erro": "Token ausente."})
			return
		}
		if !id.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"erro": "Acesso negado. Apenas admins."})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// CanAccess is the row-level ownership rule: admins reach every record,
// everyone else only their own.
func (i Identity) CanAccess(ownerID uint) bool {
	return i.IsAdmin() || i.ID == ownerID
}
