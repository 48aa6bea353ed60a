package auth

import (
	"context"
	"errors"
	"slices"
)

// Scope is the kind of credential that authenticated a request.
type Scope string

const (
	// ScopeUser is a bearer auth token bound to an organization via X-Org-Id.
	ScopeUser Scope = "user"
	// ScopeService is the master token used by ingest pipelines.
	ScopeService Scope = "service"
	// ScopeLink is a signed download link.
	ScopeLink Scope = "link"
)

// Identity is the request-scoped caller. It is immutable once attached.
type Identity struct {
	Scope Scope
	OrgID int64
	Orgs  []int64
}

// Member reports whether orgID is one of the identity's organizations.
func (i Identity) Member(orgID int64) bool {
	return slices.Contains(i.Orgs, orgID)
}

var ErrNoIdentity = errors.New("auth: identity not in context")

type ctxKey int

const (
	ctxIdentity ctxKey = iota
	ctxClientIP
	ctxLink
)

func WithIdentity(ctx context.Context, id Identity) context.Context {
	id.Orgs = slices.Clone(id.Orgs)
	return context.WithValue(ctx, ctxIdentity, id)
}

func IdentityFrom(ctx context.Context) (Identity, error) {
	if v, ok := ctx.Value(ctxIdentity).(Identity); ok {
		return v, nil
	}
	return Identity{}, ErrNoIdentity
}

// OrgID returns the organization the request acts on.
func OrgID(ctx context.Context) (int64, error) {
	id, err := IdentityFrom(ctx)
	if err != nil {
		return 0, err
	}
	if id.OrgID <= 0 {
		return 0, errors.New("auth: org_id not in context")
	}
	return id.OrgID, nil
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxClientIP, ip)
}

func ClientIP(ctx context.Context) string {
	if s, ok := ctx.Value(ctxClientIP).(string); ok {
		return s
	}
	return ""
}

func withLink(ctx context.Context, c LinkClaims) context.Context {
	return context.WithValue(ctx, ctxLink, c)
}

// LinkFrom returns the verified link claims when the request came through a signed link.
func LinkFrom(ctx context.Context) (LinkClaims, bool) {
	c, ok := ctx.Value(ctxLink).(LinkClaims)
	return c, ok
}
