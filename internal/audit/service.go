package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"call-insights/internal/auth"
	"call-insights/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service writes the internal audit trail.
// Audit is internal-only. Callers treat it as best-effort through Record.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Append validates and stores e, filling id, timestamp, actor scope and client IP.
func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if !e.Type.valid() || e.OrgID < 0 {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if id, err := auth.IdentityFrom(ctx); err == nil {
		if e.ActorScope == "" {
			e.ActorScope = string(id.Scope)
		}
		if e.OrgID == 0 {
			e.OrgID = id.OrgID
		}
	}
	if e.IPAddress == "" {
		e.IPAddress = auth.ClientIP(ctx)
	}
	return s.repo.Append(ctx, e)
}

// Record appends e and only logs failures.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		logger.Op(ctx, "audit.record", "audit_event").Warn("audit append failed", "type", e.Type, "target_id", e.TargetID, "err", err)
	}
}

// Meta encodes metadata for Event.Metadata; encoding failures yield an empty string.
func Meta(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
