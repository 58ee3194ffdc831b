package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/service"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/response"
)

// RequireCapability rejects callers whose role is not granted the capability by the gate policy.
// Ownership checks need the loaded resource and stay in the services.
func RequireCapability(gate *service.Gate, capability service.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Error(c, appErrors.ErrTokenMissing)
			c.Abort()
			return
		}
		if err := gate.Require(identity, capability); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRoles is a helper that accepts an explicit list of roles.
func RequireRoles(gate *service.Gate, roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			response.Error(c, appErrors.ErrTokenMissing)
			c.Abort()
			return
		}
		if err := gate.Authorize(identity, roles); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
