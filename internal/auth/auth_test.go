package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"call-insights/internal/apperr"
	"call-insights/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string][]int64

func (f fakeResolver) ResolveOrgs(_ context.Context, token string) ([]int64, error) {
	if token == "down" {
		return nil, apperr.Unavailable(errors.New("db down"))
	}
	orgs, ok := f[token]
	if !ok {
		return nil, apperr.Unauthorized(errors.New("unknown token"))
	}
	return orgs, nil
}

func newSigner(t *testing.T) *LinkSigner {
	t.Helper()
	s, err := NewLinkSigner(config.AuthConfig{LinkSecret: "secret", LinkIssuer: "call-insights", LinkTTL: time.Minute})
	require.NoError(t, err)
	return s
}

func serve(h gin.HandlerFunc, req *http.Request) (*httptest.ResponseRecorder, Identity) {
	gin.SetMode(gin.TestMode)
	var seen Identity
	r := gin.New()
	r.GET("/x", h, func(c *gin.Context) {
		seen, _ = IdentityFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, seen
}

func TestRequireUser(t *testing.T) {
	resolver := fakeResolver{"abc": {1, 2}}
	cases := []struct {
		name   string
		auth   string
		org    string
		status int
	}{
		{"ok", "Bearer abc", "2", http.StatusOK},
		{"missing bearer", "", "2", http.StatusUnauthorized},
		{"bad scheme", "Basic abc", "2", http.StatusUnauthorized},
		{"missing org", "Bearer abc", "", http.StatusUnauthorized},
		{"foreign org", "Bearer abc", "3", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", "1", http.StatusUnauthorized},
		{"store down", "Bearer down", "1", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			if tc.org != "" {
				req.Header.Set("X-Org-Id", tc.org)
			}
			w, id := serve(RequireUser(resolver), req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, Identity{Scope: ScopeUser, OrgID: 2, Orgs: []int64{1, 2}}, id)
			}
		})
	}
}

func TestRequireService(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Master-Token", "master")
	w, id := serve(RequireService("master"), req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ScopeService, id.Scope)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Master-Token", "guess")
	w, _ = serve(RequireService("master"), req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	w, _ = serve(RequireService(""), req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLinkSigner(t *testing.T) {
	s := newSigner(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, exp, err := s.Issue(now, 7, "call-1", PurposeTranscription)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), exp)

	claims, err := s.Verify(tok, PurposeTranscription, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "call-1", claims.CallID)
	assert.Equal(t, int64(7), claims.OrgID)

	_, err = s.Verify(tok, PurposeTranscription, now.Add(5*time.Minute))
	assert.Error(t, err, "expired")

	_, err = s.Verify(tok, "other", now)
	assert.Error(t, err, "purpose")

	other, err := NewLinkSigner(config.AuthConfig{LinkSecret: "different"})
	require.NoError(t, err)
	_, err = other.Verify(tok, PurposeTranscription, now)
	assert.Error(t, err, "signature")
}

func TestRequireUserOrLink(t *testing.T) {
	s := newSigner(t)
	tok, _, err := s.Issue(time.Now(), 9, "call-9", PurposeTranscription)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/x?token="+tok, nil)
	w, id := serve(RequireUserOrLink(fakeResolver{}, s, PurposeTranscription), req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ScopeLink, id.Scope)
	assert.Equal(t, int64(9), id.OrgID)

	req = httptest.NewRequest(http.MethodGet, "/x?token=garbage", nil)
	w, _ = serve(RequireUserOrLink(fakeResolver{}, s, PurposeTranscription), req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-Org-Id", "1")
	w, id = serve(RequireUserOrLink(fakeResolver{"abc": {1}}, s, PurposeTranscription), req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ScopeUser, id.Scope)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, err := OrgID(ctx)
	assert.ErrorIs(t, err, ErrNoIdentity)

	orgs := []int64{4}
	ctx = WithIdentity(ctx, Identity{Scope: ScopeUser, OrgID: 4, Orgs: orgs})
	orgs[0] = 99
	id, err := IdentityFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, id.Orgs)

	n, err := OrgID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	assert.Equal(t, "", ClientIP(ctx))
	assert.Equal(t, "1.2.3.4", ClientIP(WithClientIP(ctx, "1.2.3.4")))
}
