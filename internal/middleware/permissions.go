package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
	"github.com/ndip-rw/data-portal-api/pkg/response"
)

// RequirePermission gates a route on an explicit permission flag from the
// token claims. Role is never consulted: an account without the flag is
// refused no matter how it was provisioned.
func RequirePermission(action models.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if !claims.Permissions.Can(action) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
