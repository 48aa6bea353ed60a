package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"

	"call-insights/internal/apperr"
	"call-insights/internal/response"
	"call-insights/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	orgIDHeader         = "X-Org-Id"
	masterTokenHeader   = "X-Master-Token"
	linkTokenQuery      = "token"
)

// TokenResolver maps a bearer auth token to the organizations it may act on.
// Unknown tokens yield an Unauthorized apperr.
type TokenResolver interface {
	ResolveOrgs(ctx context.Context, token string) ([]int64, error)
}

// RequestContext copies the client IP onto the request context for services and audit.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), logger.ClientIP(c)))
		c.Next()
	}
}

func unauthorized(c *gin.Context, reason string) {
	response.Fail(c, apperr.Unauthorized(errors.New(reason)))
}

func bearerToken(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if !strings.HasPrefix(raw, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
}

// authenticateUser resolves the bearer token and X-Org-Id into an identity.
func authenticateUser(c *gin.Context, r TokenResolver) (Identity, error) {
	tok := bearerToken(c)
	if tok == "" {
		return Identity{}, apperr.Unauthorized(errors.New("missing bearer token"))
	}
	orgID, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(orgIDHeader)), 10, 64)
	if err != nil || orgID <= 0 {
		return Identity{}, apperr.Unauthorized(errors.New("missing or invalid X-Org-Id"))
	}
	orgs, err := r.ResolveOrgs(c.Request.Context(), tok)
	if err != nil {
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindUnavailable {
			return Identity{}, err
		}
		return Identity{}, apperr.Unauthorized(err)
	}
	id := Identity{Scope: ScopeUser, OrgID: orgID, Orgs: orgs}
	if !id.Member(orgID) {
		return Identity{}, apperr.Unauthorized(errors.New("organization is not in token scope"))
	}
	return id, nil
}

// RequireUser authenticates a bearer auth token plus X-Org-Id.
// It does not perform scope checks beyond org membership; those belong to internal/rbac.
func RequireUser(r TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := authenticateUser(c, r)
		if err != nil {
			response.Fail(c, err)
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireService authenticates the X-Master-Token header.
func RequireService(masterToken string) gin.HandlerFunc {
	want := []byte(masterToken)
	return func(c *gin.Context) {
		got := c.GetHeader(masterTokenHeader)
		if got == "" || len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			unauthorized(c, "invalid master token")
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), Identity{Scope: ScopeService}))
		c.Next()
	}
}

// RequireUserOrLink accepts either a user credential or a signed link passed as ?token=.
func RequireUserOrLink(r TokenResolver, s *LinkSigner, purpose string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := c.Query(linkTokenQuery); tok != "" && s != nil {
			claims, err := s.Verify(tok, purpose, time.Now())
			if err != nil {
				unauthorized(c, "invalid link: "+err.Error())
				return
			}
			ctx := WithIdentity(c.Request.Context(), Identity{Scope: ScopeLink, OrgID: claims.OrgID, Orgs: []int64{claims.OrgID}})
			c.Request = c.Request.WithContext(withLink(ctx, claims))
			c.Next()
			return
		}
		id, err := authenticateUser(c, r)
		if err != nil {
			response.Fail(c, err)
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}
