package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// nonceTTL bounds how long a consumed jti is remembered. Tokens outlive it
// only if they outlive their own expiry, which VerifyToken already rejects.
const nonceTTL = 15 * time.Minute

const claimsContextKey = "webchain_claims"

// RequireCapability returns middleware that authenticates the bearer token
// and checks the capability. When nonces is non-nil the token's jti is
// consumed as a one-time anti-replay nonce. Authorization failures
// short-circuit before any engine logic and are never written to the sync
// error log.
func RequireCapability(svc *Service, nonces NonceStore, capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		claims, err := svc.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "msg": err.Error()})
			return
		}

		if capability != "" && !claims.HasCapability(capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
			return
		}

		if nonces != nil {
			fresh, err := nonces.Consume(c.Request.Context(), claims.ID, nonceTTL)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "nonce_check_failed"})
				return
			}
			if !fresh {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "replayed_request"})
				return
			}
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}
