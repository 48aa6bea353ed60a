package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"call-insights/internal/auth"

	"github.com/gin-gonic/gin"
)

func run(id *auth.Identity, chain ...gin.HandlerFunc) int {
	gin.SetMode(gin.TestMode)

	handlers := []gin.HandlerFunc{func(c *gin.Context) {
		if id != nil {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), *id))
		}
		c.Next()
	}}
	handlers = append(handlers, chain...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })

	r := gin.New()
	r.GET("/x", handlers...)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireOrg_MemberPasses(t *testing.T) {
	id := &auth.Identity{Scope: auth.ScopeUser, OrgID: 3, Orgs: []int64{1, 3}}
	if code := run(id, RequireOrg()); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireOrg_Required(t *testing.T) {
	if code := run(nil, RequireOrg()); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
	id := &auth.Identity{Scope: auth.ScopeService}
	if code := run(id, RequireOrg()); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for service scope, got %d", code)
	}
	id = &auth.Identity{Scope: auth.ScopeUser, OrgID: 5, Orgs: []int64{1}}
	if code := run(id, RequireOrg()); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign org, got %d", code)
	}
}

func TestRequireScope(t *testing.T) {
	link := &auth.Identity{Scope: auth.ScopeLink, OrgID: 1, Orgs: []int64{1}}
	if code := run(link, RequireScope(auth.ScopeUser)); code != http.StatusUnauthorized {
		t.Fatalf("expected link scope to be denied, got %d", code)
	}
	if code := run(link, RequireScope(auth.ScopeUser, auth.ScopeLink)); code != http.StatusOK {
		t.Fatalf("expected link scope to pass, got %d", code)
	}
}
