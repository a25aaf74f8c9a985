package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/response"
)

// RequireUserTypes restricts a route to the listed audience types.
func RequireUserTypes(types ...models.UserType) gin.HandlerFunc {
	allowed := make(map[models.UserType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.UserType]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRoles restricts a route to staff holding at least one of the
// listed roles (as carried in the token).
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, role := range roles {
			if claims.HasRole(role) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
