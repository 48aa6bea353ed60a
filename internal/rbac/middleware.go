package rbac

import (
	"errors"
	"slices"

	"call-insights/internal/apperr"
	"call-insights/internal/auth"
	"call-insights/internal/response"

	"github.com/gin-gonic/gin"
)

// RequireOrg enforces the multi-tenant invariant: an organization must be selected and
// belong to the caller's token scope.
func RequireOrg() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.IdentityFrom(c.Request.Context())
		if err != nil || id.OrgID <= 0 || !id.Member(id.OrgID) {
			response.Fail(c, apperr.Unauthorized(errors.New("organization scope required")))
			return
		}
		c.Next()
	}
}

// RequireScope allows access only to callers authenticated with one of the given scopes.
func RequireScope(allowed ...auth.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.IdentityFrom(c.Request.Context())
		if err != nil || !slices.Contains(allowed, id.Scope) {
			response.Fail(c, apperr.Unauthorized(errors.New("credential scope not allowed")))
			return
		}
		c.Next()
	}
}
