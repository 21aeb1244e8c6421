package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/finsight/walletauth/core"
	"github.com/finsight/walletauth/service"
	"github.com/gin-gonic/gin"
)

// Identity headers populated by the upstream platform authentication.
// This service trusts them; see the platform gateway for how they are set.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

const (
	tenantContextKey     = "tenantID"
	userContextKey       = "userID"
	credentialContextKey = "walletCredential"
)

// IdentityMiddleware requires the tenant/user identity headers and puts
// them in the request context.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderTenantID)
		userID := c.GetHeader(HeaderUserID)

		if tenantID == "" || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_identity", "message": "X-Tenant-ID and X-User-ID headers are required"})
			return
		}

		c.Set(tenantContextKey, tenantID)
		c.Set(userContextKey, userID)

		c.Next()
	}
}

// WalletAuthMiddleware validates a bearer wallet credential and puts its
// claims in the request context.
func WalletAuthMiddleware(walletService *service.WalletService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_authorization", "message": "bearer token required"})
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")

		cred, err := walletService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, core.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token_expired", "message": "wallet token expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "message": "invalid wallet token"})
			}
			return
		}

		c.Set(credentialContextKey, cred)

		c.Next()
	}
}

func identityFromContext(c *gin.Context) (tenantID, userID string) {
	return c.GetString(tenantContextKey), c.GetString(userContextKey)
}
