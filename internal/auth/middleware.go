package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"carbon-market/mrv-backend/pkg/security"
)

const verifierContextKey = "verifier_id"

// Middleware validates the bearer token issued by the external identity
// provider and exposes the authenticated verifier ID to handlers. The token
// subject is trusted as already authenticated.
func Middleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		verifierID, err := security.ParseVerifier(strings.TrimPrefix(header, "Bearer "), jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(verifierContextKey, verifierID)
		c.Next()
	}
}

// VerifierID returns the authenticated verifier from the request context
func VerifierID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(verifierContextKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	return id, ok
}
