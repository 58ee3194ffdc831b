package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/logger"
	"github.com/noah-isme/learnhub-api/pkg/response"
)

// ContextUserKey is the gin context key storing the resolved caller identity.
const ContextUserKey = "currentUser"

// IdentityResolver turns a bearer credential into the caller's current identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (models.Identity, error)
}

// JWT protects routes by requiring a valid access token. The identity carries the role currently
// stored for the account, not the role embedded when the token was issued.
func JWT(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.ErrTokenMissing)
			c.Abort()
			return
		}

		identity, err := resolver.Resolve(c.Request.Context(), credential)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, identity)
		c.Set(logger.ActorIDKey, identity.ID)
		c.Next()
	}
}

// CurrentIdentity returns the identity attached by JWT.
func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := value.(models.Identity)
	return identity, ok
}

func bearer(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
